// Package ircbridge exposes the agent on IRC: it answers when addressed by
// nick, keeps one session per channel, and accepts operator commands in
// private messages.
package ircbridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/irc.v4"

	"agentloop/internal"
	"agentloop/internal/ai"
	"agentloop/internal/ai/tools"
	"agentloop/internal/config"
	"agentloop/internal/logger"
	"agentloop/internal/security"
)

// Agent is the part of *ai.Agent the bridge drives.
type Agent interface {
	Run(ctx context.Context, sessionID, input string) (string, error)
	ResetSession(ctx context.Context, sessionID string) error
	Status() map[string]interface{}
}

// Sender is the part of *irc.Client used for replies.
type Sender interface {
	WriteMessage(m *irc.Message) error
	CurrentNick() string
}

const maxReplyLines = 3

type Bridge struct {
	agent Agent
	cfg   config.IRCConfig
	flood *security.MessageTracker

	mu        sync.Mutex
	operators map[string]bool // by hostmask
	ignored   map[string]bool

	messageDelay time.Duration
	pending      sync.WaitGroup
}

func NewBridge(agent Agent, cfg config.IRCConfig) *Bridge {
	return &Bridge{
		agent:        agent,
		cfg:          cfg,
		flood:        security.DefaultMessageTracker(),
		operators:    make(map[string]bool),
		ignored:      make(map[string]bool),
		messageDelay: 800 * time.Millisecond,
	}
}

// Handler adapts the bridge to an irc.v4 client. Agent turns started by it
// use ctx.
func (b *Bridge) Handler(ctx context.Context) irc.Handler {
	return irc.HandlerFunc(func(c *irc.Client, m *irc.Message) {
		b.HandleMessage(ctx, c, m)
	})
}

// Wait blocks until all in-flight answers have been sent.
func (b *Bridge) Wait() {
	b.pending.Wait()
}

func (b *Bridge) HandleMessage(ctx context.Context, c Sender, m *irc.Message) {
	switch m.Command {
	case internal.RPL_WELCOME:
		logger.Successf(">> Welcome message received: %s", m.Trailing())
		if b.cfg.Password != "" {
			b.send(c, internal.CMD_PRIVMSG, "NickServ", "IDENTIFY "+b.cfg.Password)
			logger.Successf(">> Identifying with NickServ...")
		}
	case internal.RPL_ENDOFMOTD, internal.ERR_NOMOTD:
		for _, channel := range b.cfg.Channels {
			if err := c.WriteMessage(&irc.Message{Command: internal.CMD_JOIN, Params: []string{channel}}); err != nil {
				logger.Errorf(">> Error joining channel %s: %v", channel, err)
			} else {
				logger.Successf(">> Joining channel: %s", channel)
			}
		}
	case internal.ERR_NICKNAMEINUSE:
		logger.Errorf(">> Nickname is already in use, server assigned %s", c.CurrentNick())
	case internal.CMD_KICK:
		if len(m.Params) > 1 && strings.EqualFold(m.Params[1], c.CurrentNick()) {
			logger.Warnf(">> Kicked from %s: %s", m.Params[0], m.Trailing())
		}
	case internal.CMD_ERROR:
		logger.Errorf(">> ERROR: %s", m.Trailing())
	case internal.CMD_PRIVMSG:
		if len(m.Params) == 0 || m.Prefix == nil {
			return
		}
		if strings.EqualFold(m.Params[0], c.CurrentNick()) {
			b.handlePrivateMessage(ctx, c, m)
		} else {
			b.handleChannelMessage(ctx, c, m)
		}
	}
}

func (b *Bridge) handleChannelMessage(ctx context.Context, c Sender, m *irc.Message) {
	channel := m.Params[0]
	userNick := m.Prefix.Name
	message := m.Trailing()

	logger.LogChannelMessage(channel, userNick, message)
	if !b.admit(c, m) {
		return
	}
	if !containsNick(c.CurrentNick(), message) {
		return
	}

	question := removeBotNick(c.CurrentNick(), message)
	if question == "" {
		logger.Debugf("Bot mentioned with no content, adding default greeting")
		question = "Hello"
	}
	logger.ChatMsgf("%s | %s: %s", channel, userNick, message)
	b.answer(ctx, c, channel, userNick, channelSession(channel), question)
}

func (b *Bridge) handlePrivateMessage(ctx context.Context, c Sender, m *irc.Message) {
	userNick := m.Prefix.Name
	message := strings.TrimSpace(m.Trailing())

	if !b.admit(c, m) {
		return
	}
	logger.ChatMsgf(">> Private message from %s: %s", userNick, message)

	switch {
	case message == "":
		logger.Debugf("Received empty private message from %s; skipping response.", userNick)
	case strings.HasPrefix(message, "!"):
		b.handleCommand(ctx, c, m, message)
	default:
		b.answer(ctx, c, userNick, userNick, privateSession(userNick), message)
	}
}

// admit applies flood protection and reports whether the message should be
// processed. Repeat offenders are ignored from then on.
func (b *Bridge) admit(c Sender, m *irc.Message) bool {
	hostmask := m.Prefix.String()
	userNick := m.Prefix.Name

	b.mu.Lock()
	ignored := b.ignored[hostmask]
	b.mu.Unlock()
	if ignored {
		return false
	}

	spamming, count := b.flood.TrackMessage(hostmask)
	if !spamming {
		return true
	}
	logger.Warnf("Rate limit exceeded for %s: %d messages in window", userNick, count)

	if b.flood.AddWarning(hostmask) {
		b.mu.Lock()
		b.ignored[hostmask] = true
		b.mu.Unlock()
		logger.Warnf("User %s (%s) has been automatically ignored for spam", userNick, hostmask)
		b.send(c, internal.CMD_NOTICE, userNick, "You have been automatically ignored for spam protection.")
		return false
	}

	b.send(c, internal.CMD_NOTICE, userNick, fmt.Sprintf("Warning (%d/%d): Please slow down to avoid being automatically ignored.",
		b.flood.WarningCount(hostmask), b.flood.WarningThreshold()))
	return true
}

// answer runs the agent in the background and posts the result to target.
func (b *Bridge) answer(ctx context.Context, c Sender, target, userNick, sessionID, question string) {
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()

		logger.AIDebugf("Processing AI request from %s in %s: %s", userNick, target, question)
		response, err := b.agent.Run(tools.WithCaller(ctx, userNick), sessionID, question)
		if err != nil {
			logger.Errorf("Error processing AI request: %v", err)
			if errors.Is(err, context.Canceled) {
				return
			}
			if response == "" {
				response = ai.ErrorResponse
			}
		}
		b.reply(c, target, response)
	}()
}

func (b *Bridge) reply(c Sender, target, response string) {
	lines := formatForIRC(response)
	if len(lines) == 0 {
		logger.Warnf("Sanitized response is empty")
		return
	}
	if len(lines) > maxReplyLines {
		omitted := len(lines) - maxReplyLines
		lines = append(lines[:maxReplyLines], fmt.Sprintf("(Response truncated, %d more parts omitted)", omitted))
	}

	for i, line := range lines {
		if i > 0 && b.messageDelay > 0 {
			time.Sleep(b.messageDelay)
		}
		if !b.send(c, internal.CMD_PRIVMSG, target, line) {
			return
		}
		if isChannel(target) {
			logger.LogChannelMessage(target, c.CurrentNick(), line)
		}
	}
}

func (b *Bridge) handleCommand(ctx context.Context, c Sender, m *irc.Message, message string) {
	userNick := m.Prefix.Name
	hostmask := m.Prefix.String()
	parts := strings.Fields(message)
	command, args := strings.ToLower(strings.TrimPrefix(parts[0], "!")), parts[1:]

	if command == "auth" {
		b.authenticate(c, userNick, hostmask, args)
		return
	}
	if command == "help" {
		b.send(c, internal.CMD_PRIVMSG, userNick, "Commands: !auth <passphrase>, !reset [#channel], !tools, !status")
		return
	}

	if !b.isOperator(hostmask) {
		logger.Warnf("Potential command attempt from unauthorized user: %s, Hostmask: %s", userNick, hostmask)
		b.send(c, internal.CMD_PRIVMSG, userNick, "You are not authorized to use bot commands. Use !auth <passphrase> first.")
		return
	}

	switch command {
	case "reset":
		sessionID := privateSession(userNick)
		if len(args) > 0 {
			sessionID = channelSession(args[0])
		}
		if err := b.agent.ResetSession(ctx, sessionID); err != nil {
			b.send(c, internal.CMD_PRIVMSG, userNick, "Failed to reset session: "+err.Error())
			return
		}
		b.send(c, internal.CMD_PRIVMSG, userNick, "Session "+sessionID+" has been reset.")
		logger.Successf("Session %s reset by %s", sessionID, userNick)

	case "tools":
		names, _ := b.agent.Status()["availableTools"].([]string)
		b.send(c, internal.CMD_PRIVMSG, userNick, fmt.Sprintf("Available tools (%d): %s", len(names), strings.Join(names, ", ")))

	case "status":
		status := b.agent.Status()
		keys := make([]string, 0, len(status))
		for k := range status {
			if k != "availableTools" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, fmt.Sprintf("%s=%v", k, status[k]))
		}
		b.send(c, internal.CMD_PRIVMSG, userNick, strings.Join(fields, " "))

	default:
		b.send(c, internal.CMD_PRIVMSG, userNick, "Unknown command: !"+command)
	}
}

func (b *Bridge) authenticate(c Sender, userNick, hostmask string, args []string) {
	if b.cfg.OperatorPasshash == "" {
		b.send(c, internal.CMD_PRIVMSG, userNick, "Operator commands are disabled.")
		return
	}
	if len(args) == 0 {
		b.send(c, internal.CMD_PRIVMSG, userNick, "Usage: !auth <passphrase>")
		return
	}

	ok, err := security.VerifyHash(strings.Join(args, " "), b.cfg.OperatorPasshash)
	if err != nil {
		logger.Errorf("Failed to verify operator passphrase: %v", err)
		b.send(c, internal.CMD_PRIVMSG, userNick, "Verification failed due to an internal error.")
		return
	}
	if !ok {
		logger.Warnf("Operator authentication failed for %s", hostmask)
		b.send(c, internal.CMD_PRIVMSG, userNick, "Authentication failed.")
		return
	}

	b.mu.Lock()
	b.operators[hostmask] = true
	b.mu.Unlock()
	logger.Successf("Operator %s authenticated with hostmask: %s", userNick, hostmask)
	b.send(c, internal.CMD_PRIVMSG, userNick, "Authenticated as operator for "+hostmask)
}

func (b *Bridge) isOperator(hostmask string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.operators[hostmask]
}

func (b *Bridge) send(c Sender, command, target, text string) bool {
	if err := c.WriteMessage(&irc.Message{Command: command, Params: []string{target, text}}); err != nil {
		logger.Errorf("Failed to send %s to %s: %v", command, target, err)
		return false
	}
	return true
}

func isChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

func channelSession(channel string) string {
	return "irc:" + strings.ToLower(channel)
}

func privateSession(nick string) string {
	return "irc:pm:" + strings.ToLower(nick)
}
