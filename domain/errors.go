package domain

import "errors"

var (
	// ErrNotFound 域名或订阅者不存在。
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey 仓库层插入已存在的域名。
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrAlreadyExists 业务层发现域名已在跟踪列表中。
	ErrAlreadyExists = errors.New("domain already tracked")
	// ErrMalformedResponse 注册局返回的数据缺少必要字段。
	ErrMalformedResponse = errors.New("malformed registry response")
	// ErrFetchFailed 注册局查询没有得到可用结果。
	ErrFetchFailed   = errors.New("domain info could not be fetched")
	ErrInvalidName   = errors.New("invalid domain name")
	ErrInvalidRecord = errors.New("invalid domain record")
)
