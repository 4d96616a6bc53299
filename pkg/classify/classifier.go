package classify

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	contrastBothRe    = regexp.MustCompile(`WITH( AND)? WITHOUT|W/.*AND.*W/O`)
	contrastWithoutRe = regexp.MustCompile(`\bWITHOUT\b|\bW/O\b`)
	contrastWithRe    = regexp.MustCompile(`\bWITH\b|\bW/`)
)

// Result is a classified exam description. BodyParts keeps first-match
// order; BodyPartLabel joins them for storage and display.
type Result struct {
	Modality  string
	BodyParts []string
	Contrast  string
	ExamType  string
}

func (r Result) BodyPartLabel() string {
	if len(r.BodyParts) == 0 {
		return BodyPartUnknown
	}
	return strings.Join(r.BodyParts, ", ")
}

// Classifier applies the modality and body-part rule tables to exam
// description text. It is pure and safe for concurrent use: the tables are
// immutable after construction.
type Classifier struct {
	modality  RuleSet
	bodyParts RuleSet
	fallbacks RuleSet
}

func New(modalityRules, bodyPartRules, fallbackRules []Rule) *Classifier {
	return &Classifier{
		modality:  NewRuleSet(modalityRules),
		bodyParts: NewRuleSet(bodyPartRules),
		fallbacks: NewRuleSet(fallbackRules),
	}
}

// Default returns a classifier over the built-in rule tables.
func Default() *Classifier {
	return New(DefaultModalityRules(), DefaultBodyPartRules(), DefaultBodyPartFallbackRules())
}

// Classify maps a free-text exam description to modality, body regions and
// a composed exam-type label. Matching is case-insensitive; text no rule
// recognizes terminates at "Other"/"Unknown".
func (c *Classifier) Classify(description string) Result {
	text := normalizeText(description)

	modality, ok := c.modality.First(text)
	if !ok {
		modality = ModalityOther
	}

	parts := c.bodyParts.All(text)
	if len(parts) == 0 {
		if fallback, ok := c.fallbacks.First(text); ok {
			parts = []string{fallback}
		}
	}
	parts = resolveInteractions(text, parts)

	contrast := contrastPhrase(text)

	result := Result{
		Modality:  modality,
		BodyParts: parts,
		Contrast:  contrast,
	}
	result.ExamType = composeExamType(result)
	return result
}

// ClassifyCode classifies from a PS360 exam code, falling back to the
// description for anything the code prefix does not determine. An empty
// code defers to Classify entirely.
func (c *Classifier) ClassifyCode(examCode, description string) Result {
	code := strings.ToUpper(strings.TrimSpace(examCode))
	if code == "" {
		return c.Classify(description)
	}

	fromDesc := c.Classify(description)

	result := Result{
		Modality:  fromDesc.Modality,
		BodyParts: fromDesc.BodyParts,
		Contrast:  fromDesc.Contrast,
	}
	if modality, ok := examCodeModality(code); ok {
		result.Modality = modality
	}
	if parts := examCodeBodyParts(code); len(parts) > 0 {
		result.BodyParts = parts
	}
	result.ExamType = composeExamType(result)
	return result
}

func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToUpper(s), " "))
}

func contrastPhrase(text string) string {
	switch {
	case contrastBothRe.MatchString(text):
		return "w/ and w/o Contrast"
	case contrastWithoutRe.MatchString(text):
		return "w/o Contrast"
	case contrastWithRe.MatchString(text):
		return "w/ Contrast"
	default:
		return ""
	}
}

// composeExamType builds the display label: cross-sectional modalities get
// their contrast suffix, plain film is abbreviated XR, everything else is
// "modality body-part".
func composeExamType(r Result) string {
	bodyPart := r.BodyPartLabel()
	if bodyPart == BodyPartUnknown {
		bodyPart = "Other"
	}

	switch r.Modality {
	case "CT", "CTA", "MRI", "MRA", "MRV", "PET", "PET/CT":
		label := r.Modality + " " + bodyPart
		if r.Contrast != "" {
			label += " " + r.Contrast
		}
		return label
	case "Radiography":
		return "XR " + bodyPart
	default:
		return r.Modality + " " + bodyPart
	}
}

func examCodeModality(code string) (string, bool) {
	switch {
	case strings.HasPrefix(code, "CT"):
		// "CTA" as a substring is unreliable: "CTAB" is a CT abdomen.
		if strings.Contains(code, "ANG") {
			return "CTA", true
		}
		return "CT", true
	case strings.HasPrefix(code, "MR"):
		if strings.Contains(code, "MRA") {
			return "MRA", true
		}
		if strings.Contains(code, "MRV") {
			return "MRV", true
		}
		return "MRI", true
	case strings.HasPrefix(code, "XR"), strings.HasPrefix(code, "AX"), strings.HasPrefix(code, "RT"):
		return "Radiography", true
	case strings.HasPrefix(code, "NM"):
		return "Nuclear Medicine", true
	case strings.HasPrefix(code, "FL"):
		return "Fluoroscopy", true
	case strings.HasPrefix(code, "Z"):
		if strings.Contains(code, "PET") {
			if strings.Contains(code, "CT") {
				return "PET/CT", true
			}
			return "PET", true
		}
		return "Invasive", true
	default:
		return "", false
	}
}

// examCodeBodyParts decodes the compressed region tokens PS360 packs into
// exam codes (CH, AB, PE, ...). Only prefixes with a known token scheme
// contribute; otherwise the description-derived regions stand.
func examCodeBodyParts(code string) []string {
	has := func(token string) bool { return strings.Contains(code, token) }

	switch {
	case strings.HasPrefix(code, "CT"):
		var parts []string
		if has("CH") {
			parts = append(parts, "Chest")
		}
		if has("AB") {
			parts = append(parts, "Abdomen")
		}
		if has("PE") {
			parts = append(parts, "Pelvis")
		}
		if len(parts) == 0 && has("ANG") {
			parts = append(parts, "Vascular")
		}
		return parts
	case strings.HasPrefix(code, "MR"):
		switch {
		case has("KN"):
			return []string{"Lower Extremity"}
		case has("SH"):
			return []string{"Upper Extremity"}
		case has("HI"):
			return []string{"Head/Neck"}
		}
	case strings.HasPrefix(code, "XR"), strings.HasPrefix(code, "AX"):
		switch {
		case has("CH"):
			return []string{"Chest"}
		case has("AB"):
			return []string{"Abdomen"}
		}
	case strings.HasPrefix(code, "RT"):
		switch {
		case has("CH"):
			return []string{"Chest"}
		case has("HI"), has("HA"), has("SH"), has("EL"), has("CL"):
			return []string{"Upper Extremity"}
		case has("KN"), has("FO"), has("AN"), has("FE"), has("TI"), has("PR"), has("PO"):
			return []string{"Lower Extremity"}
		case has("PE"):
			return []string{"Pelvis"}
		case has("LS"):
			return []string{"Spine"}
		}
	case strings.HasPrefix(code, "NM"):
		switch {
		case has("HIDA"):
			return []string{"Liver"}
		case has("KID"), has("RENAL"), has("MAG3"):
			return []string{"Renal"}
		case has("LUNG"), has("VEN"), has("PERF"):
			return []string{"Chest"}
		case has("BJTOT"), has("BONE"):
			return []string{"Whole Body"}
		case has("GES"), has("GASTRIC"):
			return []string{"Stomach"}
		}
	}
	return nil
}
