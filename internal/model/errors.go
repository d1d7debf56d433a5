// Package model defines the domain models.
package model

import "fmt"

// APIError is the unified error format returned by every endpoint.
// Message and Action carry the user-facing French copy; Category groups the
// cause (auth, validation, contenu, system).
type APIError struct {
	Code     string
	Message  string
	Category string
	Action   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Defined error codes.
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeFileRequired       = "FILE_REQUIRED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeSessionResolving   = "SESSION_RESOLVING"
)

// NewSessionResolvingError builds the transient error returned while a
// session's role is still being resolved. Callers are expected to retry.
func NewSessionResolvingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionResolving,
		Message:  "Vérification de la session en cours.",
		Category: "auth",
		Action:   "Veuillez réessayer dans un instant.",
	}
}

// NewUnauthorizedError builds the error returned when no valid session
// accompanies the request.
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentification requise.",
		Category: "auth",
		Action:   "Veuillez vous connecter.",
	}
}

// NewForbiddenError builds the error returned when the principal is not an
// administrator.
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Accès réservé aux administrateurs.",
		Category: "auth",
		Action:   "Connectez-vous avec un compte administrateur.",
	}
}

// NewInvalidCredentialsError builds the sign-in rejection error. The same
// message covers unknown email and wrong password.
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Email ou mot de passe incorrect.",
		Category: "auth",
		Action:   "Vérifiez vos identifiants et réessayez.",
	}
}

// NewEmailTakenError builds the sign-up rejection error for a duplicate email.
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "Un compte existe déjà avec cette adresse email.",
		Category: "validation",
		Action:   "Connectez-vous ou utilisez une autre adresse email.",
	}
}

// NewValidationError builds a field validation error with a specific reason.
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Données invalides : %s", reason),
		Category: "validation",
		Action:   "Corrigez le formulaire et réessayez.",
	}
}

// NewNotFoundError builds the error for a missing record.
func NewNotFoundError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s introuvable.", what),
		Category: "contenu",
		Action:   "Vérifiez l'identifiant et actualisez la liste.",
	}
}

// NewUploadFailedError builds the error for a failed file upload. The record
// write never happens when the upload fails.
func NewUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  fmt.Sprintf("Le téléversement du fichier a échoué : %s", reason),
		Category: "contenu",
		Action:   "Vérifiez le fichier et réessayez.",
	}
}

// NewFileRequiredError builds the error for a create that needs a file.
func NewFileRequiredError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeFileRequired,
		Message:  fmt.Sprintf("Veuillez sélectionner %s.", what),
		Category: "validation",
		Action:   "Joignez le fichier requis et réessayez.",
	}
}

// NewInternalError builds the generic internal error. Details stay in logs.
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Une erreur interne est survenue.",
		Category: "system",
		Action:   "Veuillez réessayer dans quelques instants.",
	}
}
