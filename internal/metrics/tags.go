package metrics

// Tag renders a DataDog key:value tag.
func Tag(key, value string) string {
	return key + ":" + value
}

// Helpers for the tag dimensions the access layer emits.

func LevelTag(level string) string           { return Tag("level", level) }
func OperationTag(op string) string          { return Tag("operation", op) }
func PatternTag(pattern string) string       { return Tag("pattern", pattern) }
func StatusTag(status string) string         { return Tag("status", status) }
func LayerTag(layer string) string           { return Tag("layer", layer) }
func DependencyTag(dependency string) string { return Tag("dependency", dependency) }
func QualityTag(quality string) string       { return Tag("quality", quality) }
func CircuitStateTag(state string) string    { return Tag("circuit_state", state) }
