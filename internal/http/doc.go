// Package http exposes the integrity services over JSON.
//
// The router exposes the following endpoints:
//   - POST /sessions/validate: dry-run admission check. Body: sessionRequest plus an
//     optional "session_id" when the candidate replaces an existing session. Returns
//     {"valid":true,"warnings":[...]} or a 422 error naming the violated rule.
//   - GET /sessions, POST /sessions, GET /sessions/{id}, PUT /sessions/{id},
//     DELETE /sessions/{id}: session records exchanging the `sessionDTO` payload defined
//     in session_handler.go. Listing accepts course_id, teacher_id, from, to and one of
//     day, week or month.
//   - GET /courses, POST /courses, GET /courses/{id}, GET /courses/{id}/students,
//     POST /courses/{id}/students: courses and their rosters (course_handler.go).
//   - GET /integrity/duplicates, POST /integrity/duplicates/delete,
//     GET /integrity/conflicts: batch analyses (integrity_handler.go). Listings accept
//     format=json|csv.
//   - GET /reports/reconciliation?course_id=&start=&end=&format=json|csv: attendance
//     reconciliation between teacher and team-leader records.
//
// Errors are rendered as {"error_code","message","errors"}; error_code is the
// stable label produced by application.ErrorKind.
package http
