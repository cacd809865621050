package network

// 客户端请求
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom      = 101
	MsgTypeJoinRoom        = 102
	MsgTypeLeaveRoom       = 103
	MsgTypeJoinSeat        = 104
	MsgTypeLeaveSeat       = 105
	MsgTypeStartGame       = 106
	MsgTypeEndGame         = 107
	MsgTypeProcessAutoBets = 108
	MsgTypeJoinTable       = 109
)

// 服务端事件
const (
	MsgTypeRoomCreated     = 301
	MsgTypeRoomJoined      = 302
	MsgTypeRoomInfoUpdated = 303
	MsgTypePlayerJoined    = 304
	MsgTypePlayerLeft      = 305
	MsgTypeRoomSnapshot    = 306

	MsgTypeAutoBetProcessingStarted  = 310
	MsgTypeAutoBetProcessed          = 311
	MsgTypePlayerRemovedFromSeat     = 312
	MsgTypePlayerBalanceUpdated      = 313
	MsgTypeInsufficientFundsWarning  = 314
	MsgTypeAutoBetRoundSummary       = 315

	MsgTypeError   = 320
	MsgTypeSuccess = 321
)
