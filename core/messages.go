package core

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Translator formats user-facing messages
type Translator interface {
	Sprintf(key message.Reference, args ...interface{}) string
}

// NewTranslator returns a printer for locale, falling back to English.
func NewTranslator(locale string) Translator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// User-facing messages of the admin UI
const (
	MsgLoginSuccessful     = "Login successful"
	MsgLoginFailed         = "An error occurred during login. Contact support."
	MsgProfileFailed       = "An error occurred during get user data. Contact support."
	MsgNotAuthorized       = "You are not signed in to Adobe Stock."
	MsgLogoutFailed        = "An error occurred during logout operation."
	MsgSearchFailed        = "An error occurred during search. Contact support."
	MsgDownloadSuccessful  = "You have successfully downloaded the image."
	MsgImageNotFound       = "Image not found. Could not be saved."
	MsgDownloadFailed      = "An error occurred while image download. Contact support."
	MsgDownloadFailedLog   = "An error occurred during image download: %s"
	MsgLicenseSuccessful   = "The image was licensed and saved successfully."
	MsgLicenseFailed       = "An error occurred during image license. Contact support."
	MsgQuotaFailed         = "An error occurred during get quota operation. Contact support."
	MsgRelatedSuccessful   = "Get related images finished successfully"
	MsgRelatedFailed       = "An error occurred while getting related images. Contact support."
	MsgInvalidRequest      = "Invalid request: %s"
	MsgInvalidSession      = "Invalid or missing authorization token"
	MsgCallbackCodeMissing = "Authorization code is missing"
)
