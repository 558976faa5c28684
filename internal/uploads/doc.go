// Package uploads parses the marker-line protocol emitted by the upload step
// and derives canonical viewer links.
//
// Protocol (v1): the upload step writes single-line records to stdout with one
// of two prefixes followed by whitespace-separated key=value tokens:
//
//	UPLOAD_RESULT kind=short id=abc123 privacy=public
//	UPLOAD_SKIPPED kind=short reason="duration 75.0s over limit"
//
// Values containing whitespace, '=', or '"' must be Go-quoted
// (strconv.Quote); the parser unquotes them. Bare tokens stay valid for
// simple values. Malformed tokens and lines are dropped silently: a bad
// marker line must never abort the pipeline. UPLOAD_RESULT records without an
// id are discarded; UPLOAD_SKIPPED records carry a reason and no id.
//
// For every record with an id the parser derives a full-watch link and a
// short-form link from the video id.
package uploads
