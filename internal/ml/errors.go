package ml

import "fmt"

// TrainingError is returned when a dataset cannot be trained on.
type TrainingError struct {
	Reason string
}

func (e *TrainingError) Error() string {
	return "training failed: " + e.Reason
}

// ModelNotLoadedError is returned when inference is requested without a
// usable artifact, either because none is loaded or because the stored one is
// missing or corrupt.
type ModelNotLoadedError struct {
	Path string
	Err  error
}

func (e *ModelNotLoadedError) Error() string {
	switch {
	case e.Path == "" && e.Err == nil:
		return "model not loaded"
	case e.Err == nil:
		return fmt.Sprintf("model not loaded from %s", e.Path)
	case e.Path == "":
		return fmt.Sprintf("model not loaded: %v", e.Err)
	}
	return fmt.Sprintf("model not loaded from %s: %v", e.Path, e.Err)
}

func (e *ModelNotLoadedError) Unwrap() error { return e.Err }
