package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"podagg/config"
)

var errAlertCooldown = errors.New("alert is within cooldown period")

// DiscordBotService posts upstream outage alerts to an operator channel. A
// given error code is reported at most once per cooldown window.
type DiscordBotService struct {
	session   *discordgo.Session
	channelID string
	botID     string
	enabled   bool

	cooldown       time.Duration
	mu             sync.Mutex
	lastAlertTimes map[string]time.Time
	now            func() time.Time

	send   func(embed *discordgo.MessageEmbed) error
	status func() string
}

func NewDiscordBotService(cfg *config.Config) (*DiscordBotService, error) {
	token, channelID := cfg.Discord.Token, cfg.Discord.ChannelID

	if token == "" {
		log.Println("Discord bot token not provided, Discord notifications disabled")
		return &DiscordBotService{enabled: false}, nil
	}

	if channelID == "" {
		log.Println("Discord channel ID not provided, Discord notifications disabled")
		return &DiscordBotService{enabled: false}, nil
	}

	// Create Discord session with Bot prefix
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	user, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}

	d := newDiscordBotService(channelID, cfg.AlertCooldownDuration(), func(embed *discordgo.MessageEmbed) error {
		_, err := session.ChannelMessageSendEmbed(channelID, embed)
		return err
	})
	d.session = session
	d.botID = user.ID

	session.AddHandler(d.messageHandler)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	log.Printf("Discord bot connected successfully! Bot ID: %s, Channel: %s", user.ID, channelID)
	return d, nil
}

func newDiscordBotService(channelID string, cooldown time.Duration, send func(*discordgo.MessageEmbed) error) *DiscordBotService {
	return &DiscordBotService{
		channelID:      channelID,
		enabled:        true,
		cooldown:       cooldown,
		lastAlertTimes: make(map[string]time.Time),
		now:            time.Now,
		send:           send,
	}
}

func (d *DiscordBotService) Enabled() bool {
	return d != nil && d.enabled
}

// SetStatusProvider sets the text returned by the status command.
func (d *DiscordBotService) SetStatusProvider(fn func() string) {
	if d != nil {
		d.status = fn
	}
}

func (d *DiscordBotService) Close() {
	if d.Enabled() && d.session != nil {
		log.Println("Closing Discord bot connection...")
		d.session.Close()
	}
}

func (d *DiscordBotService) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.botID {
		return
	}
	if m.ChannelID != d.channelID {
		return
	}

	reply := d.commandReply(m.Content)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.Printf("Discord reply failed: %v", err)
	}
}

func (d *DiscordBotService) commandReply(content string) string {
	if !strings.HasPrefix(content, "!podagg") {
		return ""
	}
	args := strings.Fields(content)
	if len(args) < 2 {
		return ""
	}

	switch cmd := args[1]; cmd {
	case "ping":
		return "🏓 Pong! pod aggregator is online"
	case "help":
		return "**Commands:**\n" +
			"`!podagg ping` - Check if bot is online\n" +
			"`!podagg help` - Show this help message\n" +
			"`!podagg status` - Show cache and upstream status"
	case "status":
		if d.status == nil {
			return "Status unavailable"
		}
		return d.status()
	default:
		return fmt.Sprintf("Unknown command: `%s`. Try `!podagg help`", cmd)
	}
}

// NotifyUpstreamFailure posts an outage embed unless code was reported within
// the cooldown window.
func (d *DiscordBotService) NotifyUpstreamFailure(code, message string, attempts int) error {
	if !d.Enabled() {
		return nil
	}
	if err := d.checkCooldown(code); err != nil {
		return err
	}

	if err := d.send(d.upstreamFailureEmbed(code, message, attempts)); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}

	log.Printf("Upstream alert sent to Discord: %s", code)
	return nil
}

func (d *DiscordBotService) checkCooldown(code string) error {
	if d.cooldown <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	last, exists := d.lastAlertTimes[code]
	if exists && now.Sub(last) < d.cooldown {
		log.Printf("Alert '%s' is within cooldown period, skipping", code)
		return errAlertCooldown
	}

	d.lastAlertTimes[code] = now
	return nil
}

func (d *DiscordBotService) upstreamFailureEmbed(code, message string, attempts int) *discordgo.MessageEmbed {
	now := d.now()
	return &discordgo.MessageEmbed{
		Title:       "🚨 Upstream unavailable",
		Description: message,
		Color:       colorForCode(code),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Error Code", Value: code, Inline: true},
			{Name: "Attempts", Value: fmt.Sprintf("%d", attempts), Inline: true},
			{Name: "Triggered At", Value: now.Format("2006-01-02 15:04:05 MST"), Inline: true},
		},
		Timestamp: now.Format(time.RFC3339),
	}
}

func colorForCode(code string) int {
	switch code {
	case CodeConnectionFailed:
		return 15158332 // Red
	case CodeTimeout:
		return 15105570 // Orange
	case CodeInvalidResponse:
		return 10181046 // Purple
	default:
		return 3447003 // Blue
	}
}
