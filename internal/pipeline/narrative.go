package pipeline

import (
	"fmt"

	"risk-sentinel/internal/domain"
)

// Recomendaciones de intervención por tier, en orden de prioridad. Los textos
// son contractuales con el frontend del equipo de bienestar.
var interventionsByTier = map[string][]string{
	domain.TierHigh: {
		"URGENT: Same-day counsellor contact required",
		"Emergency wellness protocol activation",
		"Faculty and Dean of Students notification",
		"Safety assessment — do not leave uncontacted",
	},
	domain.TierMedium: {
		"Proactive welfare check by personal tutor",
		"Academic support referral",
		"Peer mentoring programme enrolment",
	},
	domain.TierLow: {
		"Standard wellness newsletter",
		"Campus mental health awareness resources",
	},
}

// interventionsFor devuelve una copia de la lista del tier; un tier
// desconocido cae en la lista de bajo riesgo.
func interventionsFor(tier string) []string {
	list, ok := interventionsByTier[tier]
	if !ok {
		list = interventionsByTier[domain.TierLow]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// explanationFor arma el texto narrativo de la predicción, parametrizado por
// nombre y tier.
func explanationFor(name, tier string) string {
	if name == "" {
		name = "This student"
	}
	switch tier {
	case domain.TierHigh:
		return fmt.Sprintf("%s shows a critical risk profile. "+
			"Severe academic decline, near-total withdrawal from campus "+
			"and digital engagement indicate an acute crisis state. "+
			"Urgent intervention is required.", name)
	case domain.TierMedium:
		return fmt.Sprintf("%s shows a moderate risk profile "+
			"characterised by gradual academic decline and reduced social engagement. "+
			"Proactive outreach and academic support referral are recommended.", name)
	default:
		return fmt.Sprintf("%s presents a low risk profile "+
			"with strong academic engagement and consistent campus participation. "+
			"No immediate action required. Standard wellness communications applicable.", name)
	}
}
