// Package http exposes the lab scheduler over JSON/HTTP.
//
// Every route except /healthz requires a bearer JWT whose claims carry the
// actor (sub, name, role). The router exposes:
//   - GET /catalog: labs, time blocks and courses.
//   - GET /availability?labs=&date=&exclude=: occupied block values.
//   - GET /schedule/day?date=&labs=: the lab × block occupancy grid.
//   - POST /proposals/check: resolves a proposal into clean candidates and
//     conflicts without writing. Body: proposalRequest in dto.go.
//   - POST /proposals: persists a proposal. "policy" is "", "ignore" or
//     "replace"; conflicts without a policy answer 409 with the reports.
//   - GET /bookings, GET|PUT|DELETE /bookings/{id},
//     POST /bookings/{id}/approve, POST /bookings/{id}/reject.
//   - GET|POST /events, GET|PUT|DELETE /events/{id}.
//   - GET /activity?from=&to=&action=&limit=: the audit feed, newest first.
//   - GET /ws?channel=: live notifications over a websocket. Browsers may pass
//     the token as access_token in the query.
//
// Error bodies are {"message","error_code","errors","conflicts"} with
// Portuguese messages.
package http
