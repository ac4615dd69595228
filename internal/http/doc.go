// Package http provides the HTTP surface of the booking core.
//
// The router exposes the following endpoints:
//   - POST /webhooks/inbound: messaging-provider callback carrying a cleaner's
//     accept or decline reply as a form body (MessageSid, From, Body). Requests
//     must carry a valid X-Twilio-Signature; once verified the handler always
//     answers 200 with an empty TwiML document.
//   - POST /bookings: requests a booking on behalf of the villa owner named by
//     the X-Principal-ID header. Body is the `bookingRequest` payload and the
//     response wraps a `bookingDTO`.
//   - POST /bookings/{id}/complete: the assigned cleaner marks a confirmed visit done.
//   - POST /bookings/{id}/skip: the owner leaves a gap in a recurring series.
//   - GET /bookings/{id}/access: the assigned cleaner reads the property's
//     access instructions once the disclosure window has opened.
//   - PUT /properties/{id}/access: the owner replaces the sealed access
//     instructions. Body: {"instructions"}.
//   - POST /series/{id}/pause, /resume, /cancel: series controls on the head booking.
//   - GET /healthz: database liveness.
//
// Principal identity is asserted by the gateway in front of this service;
// requests without X-Principal-ID are rejected with 401.
package http
