package arenaproto

// Inbound intents.
const (
	TypeQueueJoin   = "queue.join"
	TypeQueueCancel = "queue.cancel"
	TypeGameMove    = "game.move"
	TypeGameOver    = "game.over"
	TypeGameResign  = "game.resign"
	TypeGameChat    = "game.chat"
	TypeRoomJoin    = "room.join"
	TypeRoomMove    = "room.move"
	TypeRoomLeave   = "room.leave"
)

// Outbound events. game.over and game.chat are shared with the inbound names.
const (
	TypeQueueWaiting    = "queue.waiting"
	TypeMatchFound      = "queue.matchFound"
	TypeMoveRelayed     = "game.moveRelayed"
	TypeMoveRejected    = "game.moveRejected"
	TypeRoomStateUpdate = "room.stateUpdate"
	TypeRoomStarted     = "room.started"
	TypeRoomResult      = "room.result"
	TypeRoomFull        = "room.full"
	TypeError           = "error"
)

// Terminal reasons carried by game.over.
const (
	ReasonCheckmate    = "checkmate"
	ReasonResignation  = "resignation"
	ReasonOpponentLeft = "opponent-left"
	ReasonDraw         = "draw"
)
