package model

// NoticeLogPage is one page of notice logs, newest first.
type NoticeLogPage struct {
	Data     []*NoticeLog `json:"data"`
	Total    int          `json:"total"`
	Pages    int          `json:"pages"`
	PageNum  int          `json:"pageNum"`
	PageSize int          `json:"pageSize"`
}
