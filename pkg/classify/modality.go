package classify

import "regexp"

// Terminal classifications for text no rule recognizes. Valid outputs, not
// errors: they signal the rule tables need extension.
const (
	ModalityOther   = "Other"
	BodyPartUnknown = "Unknown"
)

var (
	viewsRe = regexp.MustCompile(`\b\d+\s?VIEWS?\b|\bAP\b.*\bLAT(ERAL)?\b|\bAP/LAT(ERAL)?\b`)

	plainFilmTermRe = regexp.MustCompile(`\b(CHEST|ABDOMEN|KNEE|HAND|FOOT|SHOULDER|ELBOW|ANKLE|WRIST|HIP|FEMUR|TIBIA|HUMERUS|FINGER|TOE|SPINE|PELVIS|CLAVICLE|RIBS?|SINUS|TEMPORAL|FACIAL|ORBITS?|SKULL|SACRUM|COCCYX)\b`)

	otherModalityRe = regexp.MustCompile(`\bCTA?\b|\bMRI\b|\bMRA\b|\bMRV\b|\bMR\b|\bUS\b|ULTRASOUND|DUPLEX|\bPET\b|POSITRON|\bNM\b|NUCLEAR|FLUORO|\bFL\b|BARIUM|MAMMO|ECHO`)
)

// implicitPlainFilm recognizes unlabeled X-ray studies: a view-count or
// AP/lateral annotation plus a recognized body-part term, with no other
// modality keyword anywhere in the text. The exclusion keeps a CT study
// annotated "2 VIEWS" out of the plain-film bucket.
func implicitPlainFilm(text string) bool {
	if !viewsRe.MatchString(text) {
		return false
	}
	if !plainFilmTermRe.MatchString(text) {
		return false
	}
	return !otherModalityRe.MatchString(text)
}

// DefaultModalityRules is the built-in modality table. Priority encodes
// domain precedence: nuclear medicine and PET signatures outrank the bare
// CT token (a PET/CT study's text also contains "CT"), and angiographic
// variants outrank their base modality.
func DefaultModalityRules() []Rule {
	return []Rule{
		{Priority: 10, Match: AnyLiteral{"NM ", "NUCLEAR MEDICINE", "SPECT"}, Result: "Nuclear Medicine"},
		{Priority: 20, Match: AnyLiteral{"PET/CT", "PET CT"}, Result: "PET/CT"},
		{Priority: 30, Match: NewRegex(`\bPET\b|POSITRON`), Result: "PET"},
		{
			Priority: 40,
			Match: AnyLiteral{
				"HIDA", "BONE SCAN", "RENAL SCAN", "LUNG VENT", "PERF SCAN",
				"GASTRIC EMPTYING", "MAG3", "LASIX", "HEPATOBILIARY DUCTAL",
				"LIVER AND SPLEEN IMAGING",
			},
			MustNotInclude: []string{"CT ", "MRI", "MR ", "US ", "ULTRASOUND", "XR ", "X-RAY"},
			Result:         "Nuclear Medicine",
		},
		{Priority: 50, Match: NewRegex(`\bMRA\b`), Result: "MRA"},
		{Priority: 51, Match: NewRegex(`\bMRV\b`), Result: "MRV"},
		{Priority: 52, Match: AnyLiteral{"MRI", "MR "}, Result: "MRI"},
		{Priority: 60, Match: NewRegex(`\bCTA\b`), Result: "CTA"},
		{Priority: 61, Match: NewRegex(`\bCT\b`), Result: "CT"},
		{Priority: 70, Match: AnyLiteral{"DUPLEX", "DUP "}, Result: "US - Duplex"},
		{Priority: 71, Match: AnyLiteral{"US ", "ULTRASOUND"}, MustInclude: []string{"OBSTETRICAL"}, Result: "US - Obstetrical"},
		{Priority: 72, Match: AnyLiteral{"US ", "ULTRASOUND"}, MustInclude: []string{"PREGNANCY"}, Result: "US - Obstetrical"},
		{Priority: 73, Match: AnyLiteral{"US ", "ULTRASOUND"}, MustInclude: []string{"PROCEDURE"}, Result: "US Procedure"},
		{Priority: 74, Match: AnyLiteral{"US ", "ULTRASOUND"}, Result: "US"},
		{Priority: 80, Match: AnyLiteral{"FL ", "FLUORO", "BARIUM", "LUMBAR PUNCTURE", "SP "}, MustInclude: []string{"DYNAMIC"}, Result: "Fluoroscopy - Dynamic"},
		{Priority: 81, Match: AnyLiteral{"FL ", "FLUORO", "BARIUM", "LUMBAR PUNCTURE", "SP "}, MustInclude: []string{"GUIDANCE"}, Result: "Fluoroscopy Guidance"},
		{Priority: 82, Match: AnyLiteral{"FL ", "FLUORO", "BARIUM", "LUMBAR PUNCTURE", "SP "}, Result: "Fluoroscopy"},
		{Priority: 85, Match: AnyLiteral{"MAMMO", "BREAST"}, MustInclude: []string{"PROCEDURE"}, Result: "Mammography Procedure"},
		{Priority: 86, Match: AnyLiteral{"MAMMO", "BREAST"}, MustInclude: []string{"BIOPSY"}, Result: "Mammography Procedure"},
		{Priority: 87, Match: AnyLiteral{"MAMMO", "BREAST"}, Result: "Mammography"},
		{Priority: 90, Match: Literal("ECHO"), Result: "Echocardiography"},
		{Priority: 95, Match: AnyLiteral{"XR ", "X-RAY"}, Result: "Radiography"},
		{Priority: 100, Match: Predicate(implicitPlainFilm), Result: "Radiography"},
		{
			Priority:       105,
			Match:          Regex{re: plainFilmTermRe},
			MustNotInclude: []string{"SCAN", "IMAGING", "INJECTION"},
			Result:         "Radiography",
		},
		{Priority: 110, Match: AnyLiteral{"INVASIVE", "BIOPSY", "PROCEDURE"}, Result: "Invasive"},
		// Catch-all guarantees termination.
		{Priority: 1000, Match: Predicate(func(string) bool { return true }), Result: ModalityOther},
	}
}
