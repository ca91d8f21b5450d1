// pre_processor.go implements the WGSL pre-processor. It replaces @oxy:include lines with
// embedded snippet sources and records which snippets a shader pulled in.
package shader

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed assets/hash.wgsl
var hashSource string

//go:embed assets/particle.wgsl
var particleSource string

//go:embed assets/fullscreen.wgsl
var fullscreenSource string

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	snippets map[AnnotationArg]string
	includes []AnnotationArg
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation in source. Each snippet is injected at most once;
	// repeated includes of the same snippet are dropped.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error if an annotation is malformed or names an unknown snippet
	Process(source string) (string, error)

	// Includes returns the snippets injected by the most recent Process call, in source order.
	Includes() []AnnotationArg
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the built-in snippets registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippets: map[AnnotationArg]string{
			AnnotationArgHash:       hashSource,
			AnnotationArgParticle:   particleSource,
			AnnotationArgFullscreen: fullscreenSource,
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.includes = p.includes[:0]
	seen := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		name := a.Args[0]
		src, ok := p.snippets[name]
		if !ok {
			return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		p.includes = append(p.includes, name)
		out = append(out, src)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Includes() []AnnotationArg {
	return p.includes
}
