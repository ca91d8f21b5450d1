// annotations.go defines the @oxy: annotation syntax understood by the WGSL pre-processor.
// Annotations are single-line WGSL comments; the only supported action is include, which
// splices a registered WGSL snippet into the source at the annotation site.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered snippet.
	//
	// Syntax: //@oxy:include <snippet>
	AnnotationTypeInclude AnnotationType = "include"
)

// AnnotationArg names a registered snippet.
type AnnotationArg string

const (
	// AnnotationArgHash is the PCG hash shared with common.Hash32.
	AnnotationArgHash AnnotationArg = "hash"
	// AnnotationArgParticle holds the index to texel helpers shared with common.IndexToTexel.
	AnnotationArgParticle AnnotationArg = "particle"
	// AnnotationArgFullscreen is the single-triangle fullscreen vertex helper.
	AnnotationArgFullscreen AnnotationArg = "fullscreen"
)

// Annotation is one parsed @oxy: line.
type Annotation struct {
	Type AnnotationType
	Args []AnnotationArg
	// Line is 1-based.
	Line int
}

// parseAnnotation parses a single source line. Lines that are not annotations return nil, nil.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number used for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil
//   - error: an error if the line is a malformed annotation
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	body, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	body, ok = strings.CutPrefix(strings.TrimSpace(body), annotationPrefix)
	if !ok {
		return nil, nil
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, fmt.Errorf("line %d: empty annotation", lineNum)
	}
	a := &Annotation{Type: AnnotationType(fields[0]), Line: lineNum}
	for _, f := range fields[1:] {
		a.Args = append(a.Args, AnnotationArg(f))
	}

	switch a.Type {
	case AnnotationTypeInclude:
		if len(a.Args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy:include takes exactly one argument, got %d", lineNum, len(a.Args))
		}
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, a.Type)
	}
	return a, nil
}
