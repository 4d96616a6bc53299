package classify

import "regexp"

var (
	headNeckRe = regexp.MustCompile(`\b(HEAD|NECK|BRAIN|SKULL|ORBITS?|FACIAL|SINUS(ES)?|TEMPORAL|PITUITARY|CRANIAL)\b`)
	carotidRe  = regexp.MustCompile(`CAROTID`)
	lymphRe    = regexp.MustCompile(`LYMPH`)
)

// DefaultBodyPartRules is the built-in body-region table. Unlike modality,
// body part is multi-valued: every satisfied rule contributes its label,
// in priority order. The whole-body range rule is exclusive because range
// studies ("SKULL BASE - MID THIGH") would otherwise also hit the skull
// and thigh keywords.
func DefaultBodyPartRules() []Rule {
	return []Rule{
		{Priority: 5, Match: NewRegex(`SKULL( BASE)?.{0,12}(MID )?THIGH`), Result: "Whole Body", Exclusive: true},
		{Priority: 10, Match: Regex{re: headNeckRe}, Result: "Head/Neck"},
		{Priority: 20, Match: NewRegex(`\b(CHEST|LUNGS?|THORAX)\b`), Result: "Chest"},
		{Priority: 30, Match: NewRegex(`\bABDOMEN\b|\bABDOMINAL\b`), Result: "Abdomen"},
		{Priority: 40, Match: NewRegex(`\bPELVIS\b|\bPELVIC\b`), Result: "Pelvis"},
		{Priority: 50, Match: NewRegex(`\b(SPINE|LUMBOSACRAL|CERVICAL|THORACIC|LUMBAR|SACRUM|COCCYX)\b|\b[CTL][- ]SPINE\b`), Result: "Spine"},
		{Priority: 60, Match: NewRegex(`\b(SHOULDER|ELBOW|WRIST|HAND|FINGERS?|HUMERUS|FOREARM|CLAVICLE|ARM)\b`), Result: "Upper Extremity"},
		{Priority: 70, Match: NewRegex(`\b(HIP|KNEE|ANKLE|FOOT|TOES?|FEMUR|TIBIA|FIBULA|THIGH|LEG)\b`), Result: "Lower Extremity"},
		{Priority: 80, Match: NewRegex(`\bBREAST\b|MAMMO`), Result: "Breast"},
		{Priority: 90, Match: NewRegex(`\bRENAL\b|\bKIDNEYS?\b`), Result: "Renal"},
		{Priority: 100, Match: NewRegex(`\bCARDIAC\b|\bHEART\b|\bECHO\b`), Result: "Cardiac"},
		{Priority: 110, Match: NewRegex(`CAROTID|ARTERIAL|VENOUS|\bVEINS?\b|ARTER(Y|IES)`), Result: "Vascular"},
		{Priority: 120, Match: NewRegex(`\bLIVER\b|HEPATOBILIARY|HEPATIC|\bHIDA\b`), Result: "Liver"},
		{Priority: 130, Match: NewRegex(`\bSPLEEN\b`), Result: "Spleen"},
		{Priority: 140, Match: NewRegex(`\bSTOMACH\b|GASTRIC|ESOPHAG|SWALLOW`), Result: "Stomach"},
		{Priority: 145, Match: NewRegex(`\bTHYROID\b|\bI-?131\b`), Result: "Thyroid"},
		{Priority: 150, Match: NewRegex(`WHOLE BODY|BONE SCAN|TUMOR IMAGING`), Result: "Whole Body"},
	}
}

// DefaultBodyPartFallbackRules catch nuclear-medicine and procedure
// shorthand that carries no anatomic keyword. Consulted only when the main
// table accumulated nothing; first match wins.
func DefaultBodyPartFallbackRules() []Rule {
	return []Rule{
		{Priority: 10, Match: NewRegex(`\bMAG3\b|\bLASIX\b`), Result: "Renal"},
		{Priority: 20, Match: NewRegex(`\bVENT\b|\bPERF\b`), Result: "Chest"},
		{Priority: 30, Match: NewRegex(`3 PHASE BONE`), Result: "Whole Body"},
		{Priority: 40, Match: NewRegex(`\bUPTAKE\b`), Result: "Thyroid"},
		{Priority: 50, Match: Predicate(func(text string) bool {
			return Literal("SCAN").Match(text) && AnyLiteral{"WHOLE", "BODY"}.Match(text)
		}), Result: "Whole Body"},
		{Priority: 60, Match: AnyLiteral{"PORTACATH", "ACCESS"}, Result: "Vascular"},
	}
}

// resolveInteractions applies the known cross-rule interactions after
// accumulation:
//   - carotid language alongside head/neck language folds Vascular into
//     Head/Neck (a carotid ultrasound is read as a neck study);
//   - nuclear lymphatic studies leave the generic Whole Body bucket for
//     Lymphatic.
func resolveInteractions(text string, parts []string) []string {
	if carotidRe.MatchString(text) && headNeckRe.MatchString(text) {
		parts = removeLabel(parts, "Vascular")
	}
	if lymphRe.MatchString(text) {
		for i, p := range parts {
			if p == "Whole Body" {
				parts[i] = "Lymphatic"
			}
		}
		if len(parts) == 0 {
			parts = []string{"Lymphatic"}
		}
	}
	return parts
}

func removeLabel(parts []string, label string) []string {
	if len(parts) < 2 {
		return parts
	}
	out := parts[:0]
	for _, p := range parts {
		if p != label {
			out = append(out, p)
		}
	}
	return out
}
