package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

// title capitalizes analyzer-provided names ("kimchi stew" -> "Kimchi Stew").
func title(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

func statusColor(s domain.AnalysisStatus) *color.Color {
	switch s {
	case domain.AnalysisStatusComplete:
		return goodColor
	case domain.AnalysisStatusFailed:
		return badColor
	}
	return warnColor
}

func printAnalysis(out io.Writer, a *domain.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	labelColor.Fprint(w, "Analysis:\t")
	fmt.Fprintln(w, a.ID)
	labelColor.Fprint(w, "Status:\t")
	statusColor(a.Status).Fprintln(w, a.Status)
	labelColor.Fprint(w, "Submitted:\t")
	fmt.Fprintln(w, a.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	if a.Status == domain.AnalysisStatusFailed {
		labelColor.Fprint(w, "Reason:\t")
		badColor.Fprintln(w, a.FailureReason)
		return
	}
	if a.Result == nil {
		return
	}

	if a.MealName != "" {
		labelColor.Fprint(w, "Meal:\t")
		fmt.Fprintln(w, title(a.MealName))
	}

	fmt.Fprintln(w)
	headerColor.Fprintln(w, "FOOD\tQUANTITY\tKCAL\tCARBS\tPROTEIN\tFAT\tCONFIDENCE")
	if len(a.Result.Items) == 0 {
		warnColor.Fprintln(w, "(no food detected)")
	}
	for _, item := range a.Result.Items {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\t%s\t%.0f%%\n",
			title(item.FoodName),
			item.Quantity,
			item.Calories,
			nutrient(item.Nutrients.Carbohydrates),
			nutrient(item.Nutrients.Protein),
			nutrient(item.Nutrients.Fat),
			item.Confidence*100)
	}

	s := a.Result.Summary
	labelColor.Fprintf(w, "TOTAL\t\t%.0f\t%s\t%s\t%s\t\n",
		s.TotalCalories, nutrient(s.TotalCarbohydrates), nutrient(s.TotalProtein), nutrient(s.TotalFat))
}

func nutrient(n domain.Nutrient) string {
	unit := n.Unit
	if unit == "" {
		unit = "g"
	}
	return fmt.Sprintf("%.1f%s", n.Value, unit)
}

func printUsage(out io.Writer, u *domain.QuotaUsage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	labelColor.Fprint(w, "Plan:\t")
	fmt.Fprintln(w, title(string(u.Plan)))
	labelColor.Fprint(w, "Analyses used:\t")
	fmt.Fprintln(w, u.Used)

	labelColor.Fprint(w, "Remaining:\t")
	switch {
	case u.IsUnlimited:
		goodColor.Fprintln(w, "unlimited")
	case u.Remaining == 0:
		badColor.Fprintf(w, "0 of %d (upgrade to premium to continue)\n", u.Limit)
	default:
		goodColor.Fprintf(w, "%d of %d\n", u.Remaining, u.Limit)
	}
}

func printSummary(out io.Writer, s *domain.DailySummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "Meals on %s\n", s.Date)
	if len(s.Meals) == 0 {
		warnColor.Fprintln(w, "(no completed analyses)")
		return
	}
	for _, m := range s.Meals {
		name := title(m.MealName)
		if name == "" {
			name = m.ID.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f kcal\n", m.CreatedAt.Local().Format("15:04"), name, m.Result.Summary.TotalCalories)
	}
	fmt.Fprintln(w)
	labelColor.Fprintf(w, "Total:\t%.0f kcal\tcarbs %.1fg\tprotein %.1fg\tfat %.1fg\n",
		s.TotalCalories, s.TotalCarbohydrates, s.TotalProtein, s.TotalFat)
}
