// Package imaging bounds the size of clinical photographs before they are
// shipped to a vision backend. Scaling always preserves aspect ratio and
// never upscales.
// This package is internal and should not be imported by external projects.
package imaging
