package municipal

import "regexp"

// The classifier is shared by every adapter so topic semantics stay
// consistent regardless of which platform a chapter came from.
var (
	zoningPattern   = regexp.MustCompile(`(?i)zoning|land use|land usage|land development|planning|subdivision`)
	buildingPattern = regexp.MustCompile(`(?i)building|construction|permit|housing|property maintenance|fire prevention|fire code`)
	businessPattern = regexp.MustCompile(`(?i)business|license|occupation|vendor|peddler|commercial`)
	healthPattern   = regexp.MustCompile(`(?i)health|food|sanitation|nuisance|environmental|public works`)
	animalPattern   = regexp.MustCompile(`(?i)animal`)
)

// Classify tags a chapter title with topic flags. It is a pure function:
// the same title always yields the same flags.
func Classify(title string) TopicFlags {
	return TopicFlags{
		Zoning:        zoningPattern.MatchString(title),
		Building:      buildingPattern.MatchString(title),
		Business:      businessPattern.MatchString(title),
		Health:        healthPattern.MatchString(title),
		AnimalControl: animalPattern.MatchString(title),
	}
}
