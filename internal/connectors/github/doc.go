// Package github implements a connector driver for GitHub repository issues.
//
// One connector row names one repository. Each issue becomes a document
// whose content is the issue title, body and (optionally) its comments.
// Pull requests surface through the same API and are skipped unless the
// connector asks for them.
//
// # Authentication
//
// The credential payload carries a personal access token or an OAuth access
// token:
//
//	{"github_access_token": "ghp_..."}
//
// The token is sent through an oauth2 static token source. Authenticated
// requests get 5,000 API calls per hour; unauthenticated use is not supported.
//
// # Configuration
//
// Connector config keys:
//
//   - owner: repository owner (user or organisation). Required.
//   - repo: repository name. Required.
//   - state: open, closed or all. Default: all.
//   - include_pull_requests: also emit pull requests. Default: false.
//   - include_comments: append issue comments to the content. Default: true.
//
// # Incremental pulls
//
// When the runner passes a watermark, it is sent as the API's since
// parameter so only issues updated after it are listed.
//
// # Rate limiting
//
// Requests are throttled proactively with a token bucket and reactively from
// the X-RateLimit-* response headers. See [RateLimiter].
package github
