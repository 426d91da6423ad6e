package consts

const (
	// UnauthCloseCode 未认证连接的固定关闭码
	UnauthCloseCode = 4001
)

const (
	// ChatHistoryPageSize 历史消息默认分页大小
	ChatHistoryPageSize = 20
)
