package places

// suburb はオフラインフォールバック用の固定エントリ。
type suburb struct {
	Name     string
	State    string
	Postcode string
}

// auSuburbs はAPIキー未設定時・上流障害時に使用する固定のオーストラリア郊外リスト。
var auSuburbs = []suburb{
	{"Sydney", "NSW", "2000"},
	{"Bondi", "NSW", "2026"},
	{"Bondi Junction", "NSW", "2022"},
	{"Coogee", "NSW", "2034"},
	{"Randwick", "NSW", "2031"},
	{"Manly", "NSW", "2095"},
	{"Parramatta", "NSW", "2150"},
	{"Penrith", "NSW", "2750"},
	{"Newcastle", "NSW", "2300"},
	{"Wollongong", "NSW", "2500"},
	{"Melbourne", "VIC", "3000"},
	{"St Kilda", "VIC", "3182"},
	{"Fitzroy", "VIC", "3065"},
	{"Richmond", "VIC", "3121"},
	{"Brunswick", "VIC", "3056"},
	{"Geelong", "VIC", "3220"},
	{"Ballarat", "VIC", "3350"},
	{"Brisbane", "QLD", "4000"},
	{"South Brisbane", "QLD", "4101"},
	{"Fortitude Valley", "QLD", "4006"},
	{"Gold Coast", "QLD", "4217"},
	{"Cairns", "QLD", "4870"},
	{"Townsville", "QLD", "4810"},
	{"Toowoomba", "QLD", "4350"},
	{"Perth", "WA", "6000"},
	{"Fremantle", "WA", "6160"},
	{"Joondalup", "WA", "6027"},
	{"Adelaide", "SA", "5000"},
	{"Glenelg", "SA", "5045"},
	{"Mount Gambier", "SA", "5290"},
	{"Hobart", "TAS", "7000"},
	{"Launceston", "TAS", "7250"},
	{"Darwin", "NT", "0800"},
	{"Canberra", "ACT", "2600"},
}
