package services

// Progress is what badge predicates see after a completion toggle.
type Progress struct {
	Frequency      Frequency
	Streak         int
	TotalCompleted int64
}

// Badge is a catalog entry. Earned reports whether p qualifies.
type Badge struct {
	Code        string
	Name        string
	Description string
	Icon        string
	Earned      func(p Progress) bool
}

func streakAtLeast(freq Frequency, n int) func(Progress) bool {
	return func(p Progress) bool {
		return (freq == "" || p.Frequency == freq) && p.Streak >= n
	}
}

// Badges is the fixed catalog, evaluated in this order.
var Badges = []Badge{
	{
		Code:        "first-step",
		Name:        "First Step",
		Description: "Completed a habit for the first time",
		Icon:        "seedling",
		Earned:      func(p Progress) bool { return p.TotalCompleted >= 1 },
	},
	{
		Code:        "three-peat",
		Name:        "Three-peat",
		Description: "Reached a streak of 3",
		Icon:        "fire",
		Earned:      streakAtLeast("", 3),
	},
	{
		Code:        "week-warrior",
		Name:        "Week Warrior",
		Description: "Kept a daily habit for 7 days in a row",
		Icon:        "calendar-week",
		Earned:      streakAtLeast(Daily, 7),
	},
	{
		Code:        "monthly-master",
		Name:        "Monthly Master",
		Description: "Kept a daily habit for 30 days in a row",
		Icon:        "trophy",
		Earned:      streakAtLeast(Daily, 30),
	},
	{
		Code:        "steady-month",
		Name:        "Steady Month",
		Description: "Kept a weekly habit for 4 weeks in a row",
		Icon:        "calendar-check",
		Earned:      streakAtLeast(Weekly, 4),
	},
	{
		Code:        "season-keeper",
		Name:        "Season Keeper",
		Description: "Kept a monthly habit for 3 months in a row",
		Icon:        "leaf",
		Earned:      streakAtLeast(Monthly, 3),
	},
	{
		Code:        "centurion",
		Name:        "Centurion",
		Description: "Logged 100 completions",
		Icon:        "medal",
		Earned:      func(p Progress) bool { return p.TotalCompleted >= 100 },
	},
}

// EvaluateBadges returns the catalog badges that p qualifies for and whose code is not in earned.
func EvaluateBadges(p Progress, earned map[string]bool) []Badge {
	var out []Badge
	for _, b := range Badges {
		if earned[b.Code] {
			continue
		}
		if b.Earned(p) {
			out = append(out, b)
		}
	}
	return out
}

// BadgeByCode looks up a catalog entry.
func BadgeByCode(code string) (Badge, bool) {
	for _, b := range Badges {
		if b.Code == code {
			return b, true
		}
	}
	return Badge{}, false
}
