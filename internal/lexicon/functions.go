package lexicon

// Functions are the aggregation methods a series may carry.
var Functions = []string{
	"point",
	"sum",
	"maximum",
	"maximum_absolute_value",
	"median",
	"mid_range",
	"minimum",
	"minimum_absolute_value",
	"mean",
	"mean_absolute_value",
	"mode",
	"root_mean_square",
	"variance",
}

var functionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Functions))
	for _, f := range Functions {
		m[f] = struct{}{}
	}
	return m
}()

// IsFunction reports whether f is a known aggregation method.
func IsFunction(f string) bool {
	_, ok := functionSet[f]
	return ok
}
