package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/shapeql/internal/compiler"
	"github.com/roach88/shapeql/internal/logging"
	"github.com/roach88/shapeql/internal/schema"
)

// LoadMode controls how errors are handled during layout loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the entities compiled from a layout directory.
type LoadResult struct {
	Entities  []*schema.Record
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Entity returns the entity with the given name.
func (r *LoadResult) Entity(name string) (*schema.Record, bool) {
	for _, rec := range r.Entities {
		if rec.Name() == name {
			return rec, true
		}
	}
	return nil, false
}

// EntityNames lists the loaded entity names in declaration order.
func (r *LoadResult) EntityNames() []string {
	names := make([]string, len(r.Entities))
	for i, rec := range r.Entities {
		names[i] = rec.Name()
	}
	return names
}

// LoadError represents an error that occurred during layout loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLayouts loads the CUE package in dir and compiles every entity it
// declares under "entity".
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
// A nil result means nothing could be compiled at all.
func LoadLayouts(dir string, mode LoadMode, logger logging.Logger) (*LoadResult, []error) {
	log := logger.Component("loader")

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layout directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layout directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}
	log.Debug().Str("dir", dir).Int("files", len(cueFiles)).Msg("loading layouts")

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	entities := value.LookupPath(cue.ParsePath("entity"))
	if entities.Exists() {
		iter, iterErr := entities.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", iterErr)}}
		}
		for iter.Next() {
			rec, compileErr := compiler.CompileEntity(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "entity."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			log.Debug().Str("entity", rec.Name()).Int("fields", len(rec.Fields())).Msg("compiled entity")
			result.Entities = append(result.Entities, rec)
		}
	}

	if len(result.Entities) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoEntities, Message: "no entities found in layouts"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoEntities  = "E007" // No entity declared

	// Layout errors
	ErrCodeMissingFields = "E101" // Entity without fields
	ErrCodeInvalidType   = "E102" // Unsupported or missing field type
	ErrCodeInvalidField  = "E103" // Malformed field description

	// Command input errors
	ErrCodeUnknownEntity   = "E201" // Entity not declared in the layouts
	ErrCodeInvalidFilter   = "E202" // Filter does not conform to the grammar
	ErrCodeInvalidSort     = "E203" // Sort key is not a sort path
	ErrCodeBadInput        = "E204" // Unreadable document or data file
	ErrCodeInvalidDocument = "E205" // Document fails validation
	ErrCodeStore           = "E206" // Document store failure
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "."); i >= 0 {
		last = field[i+1:]
	}
	switch last {
	case "fields":
		return ErrCodeMissingFields
	case "type":
		return ErrCodeInvalidType
	case "entity":
		return ErrCodeGeneric
	default:
		return ErrCodeInvalidField
	}
}
