// Package anemia implements the anemia-screening domain: the clinical
// prompt, the parser that turns a backend's free-form reply into a
// validated result, the WHO hemoglobin classifier, and the orchestrator
// that cascades across vision providers until one succeeds.
package anemia
