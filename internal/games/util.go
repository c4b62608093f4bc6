package games

import "time"

const timeLayout = time.RFC3339Nano

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func maxInt(first int, rest ...int) int {
	for _, v := range rest {
		if v > first {
			first = v
		}
	}
	return first
}
