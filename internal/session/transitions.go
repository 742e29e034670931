package session

import "github.com/DoyleJ11/trivia-backend/pkg/protocol"

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StatePlayer         State = "player"
	StateManager        State = "manager"
	StateTerminated     State = "terminated"
)

// Allowed lists the inbound commands each state accepts. Anything else is a
// protocol violation.
var Allowed = map[State]map[protocol.Command]bool{
	StateAnonymous: {
		protocol.CmdLogin:  true,
		protocol.CmdLogout: true,
	},
	StatePlayer: {
		protocol.CmdLogout:      true,
		protocol.CmdLogged:      true,
		protocol.CmdGetQuestion: true,
		protocol.CmdSendAnswer:  true,
		protocol.CmdMyScore:     true,
		protocol.CmdHighscore:   true,
	},
	StateManager: {
		protocol.CmdLogout:         true,
		protocol.CmdLogged:         true,
		protocol.CmdLoggedInUsers:  true,
		protocol.CmdMyScore:        true,
		protocol.CmdHighscore:      true,
		protocol.CmdAddQuestion:    true,
		protocol.CmdRegisterPlayer: true,
	},
}

func accepts(s State, cmd protocol.Command) bool {
	return Allowed[s][cmd]
}
