package consts

const (
	// IMUserKey 用户身份组频道前缀，后接用户 ID 的字符串形式
	IMUserKey = "im:user:"
)
