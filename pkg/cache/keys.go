// Package cache provides standardized cache key generation functions.
// Using consistent key naming helps avoid collisions and makes cache
// behavior predictable across requests.
package cache

import "fmt"

// NoFileSentinel stands in for the file name when a chat request has no attachment.
const NoFileSentinel = "no_file"

// ResponseKey generates the response cache key for a chat request.
// The key depends only on the model, the raw user message and the attached
// file name, so two uploads sharing a name share a cache entry.
//
// Example: "gpt-4:Hello:no_file"
func ResponseKey(model, message, fileName string) string {
	if fileName == "" {
		fileName = NoFileSentinel
	}
	return fmt.Sprintf("%s:%s:%s", model, message, fileName)
}
