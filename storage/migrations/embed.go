package migrations

import "embed"

// FS 包含两种方言的建表脚本，按 golang-migrate 的命名规则存放。
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
