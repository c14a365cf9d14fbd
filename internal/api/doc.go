// Package api hosts the HTTP handlers of the portodas REST API.
//
// Handler groups its routes the way the site consumes them: PublicRoutes for
// the unauthenticated content, AdminRoutes for content and user
// administration behind RequireToken and RequireAdmin, UploadRoutes for file
// uploads and AuthRoutes for token issuance. Persistence is delegated to the
// storage repositories, accounts to an identity.Provider and files to an
// upload.Service, all injected at construction.
//
// Request bodies are validated against the schemas of package validation
// before any store call. Failures are mapped in one place (fail): validation
// errors become 400 responses listing every field, missing documents 404,
// selected identity provider codes 4xx, and everything else a logged 500
// with a generic message.
package api
