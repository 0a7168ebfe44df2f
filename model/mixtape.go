package model

// Track 混音带中的一首歌曲
type Track struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	FilePath string `json:"file_path"` // 相对于音乐根目录的路径
}

// Mixtape 一盘混音带：有序的歌曲列表
type Mixtape struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}
