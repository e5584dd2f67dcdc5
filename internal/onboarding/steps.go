package onboarding

// Step はウィザードの1ステップの固定記述子。
type Step struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Label string `json:"label"`
}

// ステップID。順序はsteps変数で定義される。
const (
	StepBusinessType   = "business_type"
	StepBusinessBasics = "business_basics"
	StepServices       = "services"
	StepLocations      = "locations"
	StepReview         = "review"
)

// steps はウィザードの固定ステップ列。
var steps = []Step{
	{ID: StepBusinessType, Path: "/onboarding/business-type", Label: "事業形態"},
	{ID: StepBusinessBasics, Path: "/onboarding/business-basics", Label: "基本情報"},
	{ID: StepServices, Path: "/onboarding/services", Label: "サービス"},
	{ID: StepLocations, Path: "/onboarding/locations", Label: "対応エリア"},
	{ID: StepReview, Path: "/onboarding/review", Label: "確認"},
}

// Steps はステップ列のコピーを返す。
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// stepIndex はステップIDの順序位置を返す。不明なIDは-1。
func stepIndex(id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Progress は指定ステップ完了時点の進捗率（0〜100）を返す。
func Progress(id string) int {
	idx := stepIndex(id)
	if idx < 0 {
		return 0
	}
	return (idx + 1) * 100 / len(steps)
}

// NextStep は次のステップを返す。最終ステップまたは不明なIDはnil。
func NextStep(id string) *Step {
	idx := stepIndex(id)
	if idx < 0 || idx+1 >= len(steps) {
		return nil
	}
	next := steps[idx+1]
	return &next
}
