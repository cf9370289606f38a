package chat

// ArgSpec 命令的一个具名参数
type ArgSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// CommandSpec 一条命令的静态描述。
// 启动时显式注册成一张表，适配器消费一次，不做运行时扫描。
type CommandSpec struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Args        []ArgSpec `json:"args,omitempty"`
}

// Commands 网关支持的全部命令
func Commands() []CommandSpec {
	return []CommandSpec{
		{Name: "start", Description: "Start (or restart) the game bound to this channel"},
		{Name: "stop", Description: "Force-stop the game in this channel (session is kept)"},
		{Name: "status", Description: "Show the current session and input mode"},
		{Name: "select", Description: "Pick a game to play in this channel",
			Args: []ArgSpec{{Name: "game", Description: "game filename or hash", Required: true}}},
		{Name: "session", Description: "Bind an existing session to this channel",
			Args: []ArgSpec{{Name: "id", Description: "session id", Required: true}}},
		{Name: "sessions", Description: "List this server's sessions"},
		{Name: "games", Description: "List installed games"},
		{Name: "install", Description: "Download and install a game file",
			Args: []ArgSpec{{Name: "url", Description: "game file URL (omit to use the latest upload)"}}},
		{Name: "recap", Description: "Replay the last story output"},
		{Name: "delete_game", Description: "Delete an installed game (no sessions may reference it)",
			Args: []ArgSpec{{Name: "game", Description: "game filename or hash", Required: true}}},
		{Name: "delete_session", Description: "Delete a session and its saves",
			Args: []ArgSpec{{Name: "id", Description: "session id", Required: true}}},
	}
}
