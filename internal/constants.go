package internal

const (
	APP_VERSION = "1.0.0"

	DEFAULT_CONFIG_PATH = "./data/config.toml"
	DEFAULT_DATA_DIR    = "./data"
	DEFAULT_STORE_PATH  = "./data/agentloop.db"
	DEFAULT_LOGS_DIR    = "./logs"

	DEFAULT_RECONNECT_DELAY = 5
	DEFAULT_CONNECT_TIMEOUT = 30
)

// IRC commands and numerics used by the chat bridge
const (
	RPL_WELCOME       = "001"
	RPL_ENDOFMOTD     = "376"
	ERR_NOMOTD        = "422"
	ERR_NICKNAMEINUSE = "433"

	CMD_PRIVMSG = "PRIVMSG"
	CMD_NOTICE  = "NOTICE"
	CMD_JOIN    = "JOIN"
	CMD_KICK    = "KICK"
	CMD_ERROR   = "ERROR"
)
