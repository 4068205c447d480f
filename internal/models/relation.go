package models

// Relations accepted from the classifier. Anything outside this set,
// including an empty answer, means "do not create a connection".
const (
	RelationContinuation  = "continuation"
	RelationPrerequisite  = "prerequisite"
	RelationExample       = "example"
	RelationAnalogy       = "analogy"
	RelationSharedContext = "shared_context"
)

var relationVocabulary = map[string]struct{}{
	RelationContinuation:  {},
	RelationPrerequisite:  {},
	RelationExample:       {},
	RelationAnalogy:       {},
	RelationSharedContext: {},
}

// ValidRelation reports whether s is part of the fixed relation vocabulary.
func ValidRelation(s string) bool {
	_, ok := relationVocabulary[s]
	return ok
}
