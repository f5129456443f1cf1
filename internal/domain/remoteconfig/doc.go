/*
Package remoteconfig resolves the remote display destination.

Fetch posts the attribution payload and device fields to the config endpoint
once, with no automatic retry, and classifies every failure as a FetchError:

	KindNetwork   transport error or timeout
	KindStatus    non-2xx response
	KindMalformed undecodable body, missing url or missing expires
	KindDeclined  {"ok": false}

Callers treat every kind the same way (cached config, else fallback); the
kind exists for logging and metrics.

The circuit breaker of the shared client guards FetchOrganicAttribution only;
an open breaker fails that lookup with KindNetwork. Fetch always sends its
request.
*/
package remoteconfig
