package model

import "time"

// WorkItem 为导出清单中的一行：机会 + 对应帖子。
type WorkItem struct {
	Opportunity Opportunity  `json:"opportunity"`
	Thread      ThreadRecord `json:"thread"`
}

// Stats 为清单统计信息。
type Stats struct {
	ThreadsTotal       int       `json:"threads_total"`
	ThreadsSynthetic   int       `json:"threads_synthetic"`
	OpportunitiesTotal int       `json:"opportunities_total"`
	Pending            int       `json:"pending"`
	Ranked             int       `json:"ranked"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Export 为 worklist.json 顶层结构。
type Export struct {
	Stats Stats      `json:"stats"`
	Items []WorkItem `json:"items"`
}
