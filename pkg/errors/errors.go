package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// FetchError is a failure of the dashboard client: transport, auth, non-2xx status or decode.
type FetchError struct {
	Operation  string
	ParentID   string
	StatusCode int
	Err        error
}

func NewFetchError(operation, parentID string, err error) *FetchError {
	return &FetchError{Operation: operation, ParentID: parentID, Err: err}
}

func (e *FetchError) WithStatus(code int) *FetchError {
	e.StatusCode = code
	return e
}

func (e *FetchError) Error() string {
	path := []string{fmt.Sprintf("fetch '%s'", e.Operation)}
	if e.ParentID != "" {
		path = append(path, fmt.Sprintf("parent '%s'", e.ParentID))
	}
	if e.StatusCode != 0 {
		path = append(path, fmt.Sprintf("status %d", e.StatusCode))
	}
	return strings.Join(path, " -> ") + ": " + errorMessage(e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadGateway, e.Error()).
		AddMetaValue("operation", e.Operation).
		AddMetaValue("parent_id", e.ParentID).
		AddMetaValue("upstream_status", e.StatusCode)
}

// ConversionError is a raw record missing an identifying field, or failing boundary validation.
type ConversionError struct {
	EntityType string
	Field      string
	Message    string
}

func NewConversionError(entityType, field, msg string) *ConversionError {
	return &ConversionError{EntityType: entityType, Field: field, Message: msg}
}

// NewConversionErrorf creates a ConversionError with a formatted message
func NewConversionErrorf(entityType, field, format string, args ...any) *ConversionError {
	return NewConversionError(entityType, field, fmt.Sprintf(format, args...))
}

func (e *ConversionError) Error() string {
	path := []string{fmt.Sprintf("convert '%s'", e.EntityType)}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}
	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *ConversionError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).
		AddMetaValue("entity_type", e.EntityType).
		AddMetaValue("field", e.Field)
}

// DuplicateKeyError is raised when two distinct raw records map to the same entity key, or two
// relationships share a key but not their endpoints.
type DuplicateKeyError struct {
	Key        string
	EntityType string
}

func NewDuplicateKeyError(key, entityType string) *DuplicateKeyError {
	return &DuplicateKeyError{Key: key, EntityType: entityType}
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key '%s' for type '%s': a different record is already registered", e.Key, e.EntityType)
}

func (e *DuplicateKeyError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("key", e.Key).
		AddMetaValue("entity_type", e.EntityType)
}

// RelationshipIntegrityError is a relationship referencing an entity key that was never registered.
type RelationshipIntegrityError struct {
	RelationshipKey string
	MissingKey      string
}

func NewRelationshipIntegrityError(relationshipKey, missingKey string) *RelationshipIntegrityError {
	return &RelationshipIntegrityError{RelationshipKey: relationshipKey, MissingKey: missingKey}
}

func (e *RelationshipIntegrityError) Error() string {
	return fmt.Sprintf("relationship '%s' references unregistered entity '%s'", e.RelationshipKey, e.MissingKey)
}

func (e *RelationshipIntegrityError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("relationship_key", e.RelationshipKey).
		AddMetaValue("missing_key", e.MissingKey)
}

// StepError ties a failure to the step that produced it.
type StepError struct {
	StepID string
	Err    error
}

func NewStepError(stepID string, err error) *StepError {
	return &StepError{StepID: stepID, Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step '%s': %s", e.StepID, errorMessage(e.Err))
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ToHTTPError converts any of the domain errors to an HTTPError, defaulting to 500.
func ToHTTPError(err error) *httperror.HTTPError {
	if err == nil {
		return nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.ToHTTPError()
	}
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr.ToHTTPError()
	}
	var dupErr *DuplicateKeyError
	if errors.As(err, &dupErr) {
		return dupErr.ToHTTPError()
	}
	var relErr *RelationshipIntegrityError
	if errors.As(err, &relErr) {
		return relErr.ToHTTPError()
	}
	if httperror.IsHTTPError(err) {
		return httperror.ToHTTPError(err)
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

func IsConversionError(err error) bool {
	var target *ConversionError
	return errors.As(err, &target)
}

func IsDuplicateKeyError(err error) bool {
	var target *DuplicateKeyError
	return errors.As(err, &target)
}

func IsRelationshipIntegrityError(err error) bool {
	var target *RelationshipIntegrityError
	return errors.As(err, &target)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
