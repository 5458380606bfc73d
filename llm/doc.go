// Package llm defines the vision provider capability shared by every
// anemia-screening backend adapter, together with the unified error type
// used to align HTTP status, retryability and fallback decisions.
package llm
