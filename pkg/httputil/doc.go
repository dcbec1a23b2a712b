// Package httputil provides HTTP utilities shared by the receiver daemon's
// endpoints: JSON response helpers and the standard middleware stack.
//
// Responses:
//
//	httputil.WriteJSON(w, http.StatusAccepted, resp)
//	httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid payload")
//	httputil.WriteDetailedError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
//
// Middleware:
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger, metrics),
//		httputil.MaxBytesMiddleware(64*1024),
//	)
package httputil
