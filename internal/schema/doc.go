// Package schema validates OCPP payloads against per-action JSON Schema
// documents.
//
// The Validator interface is the narrow contract the protocol engine
// depends on; FileValidator is the production implementation backed by
// gojsonschema, loading schema files from a directory laid out as
//
//	<dir>/v16/<Action>.json            OCPP 1.6 request
//	<dir>/v16/<Action>Response.json    OCPP 1.6 response
//	<dir>/v201/<Action>Request.json    OCPP 2.0.1 request
//	<dir>/v201/<Action>Response.json   OCPP 2.0.1 response
//
// Compiled schemas are cached for the process lifetime. Validator-reported
// violations are translated into taxonomy errors; a schema that cannot be
// loaded or compiled surfaces as NotImplemented, meaning the server does
// not understand the action well enough to validate it.
package schema
