// Package api exposes the job engine over HTTP. The handlers are thin
// adapters: they parse the request, resolve the caller from the X-User-ID
// header, delegate to the job service, and translate the error taxonomy to
// status codes. Authentication itself lives in front of this service.
package api
