// Package notify routes booking and event lifecycle changes to audience
// channels and hands rendered messages to a transport.
package notify

import (
	"strings"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
)

// Well-known channel identifiers.
const (
	ChannelGeneral       = "general"
	ChannelPendingReview = "pending-review"
	ChannelAnatomy       = "anatomy"
	ChannelPathology     = "pathology"
	ChannelChemistry     = "chemistry"

	userChannelPrefix = "user:"
)

// UserChannel is the direct channel of one user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Format selects how a message is rendered for a channel.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHTML  Format = "html"
)

// ChannelConfig holds per-channel delivery settings.
type ChannelConfig struct {
	ThreadID string
	Format   Format
}

// LabTypes resolves a lab reference to its type. *catalog.Catalog
// satisfies it.
type LabTypes interface {
	LabType(ref string) (catalog.LabType, bool)
}

// RouterConfig is the static routing table plus per-channel settings.
type RouterConfig struct {
	Table    map[catalog.LabType][]string
	Channels map[string]ChannelConfig
	// DefaultFormat applies to channels without an entry in Channels.
	DefaultFormat Format
}

// DefaultTable maps each lab type to the institutional channels that follow it.
func DefaultTable() map[catalog.LabType][]string {
	return map[catalog.LabType][]string{
		catalog.LabTypeAnatomy:           {ChannelAnatomy},
		catalog.LabTypeMicroscopy:        {ChannelPathology},
		catalog.LabTypeMultidisciplinary: {ChannelChemistry, ChannelPathology},
		catalog.LabTypePharmaceutical:    {ChannelChemistry, ChannelPathology},
		catalog.LabTypeChemistry:         {ChannelChemistry},
	}
}

// Router maps labs and lifecycles to channel ids.
type Router struct {
	labs          LabTypes
	table         map[catalog.LabType][]string
	channels      map[string]ChannelConfig
	defaultFormat Format
}

// NewRouter builds a router. A nil Table uses DefaultTable.
func NewRouter(labs LabTypes, cfg RouterConfig) *Router {
	table := cfg.Table
	if table == nil {
		table = DefaultTable()
	}
	channels := make(map[string]ChannelConfig, len(cfg.Channels))
	for id, c := range cfg.Channels {
		channels[id] = c
	}
	format := cfg.DefaultFormat
	if format == "" {
		format = FormatPlain
	}
	return &Router{labs: labs, table: table, channels: channels, defaultFormat: format}
}

// Route returns the channels following a lab. "All", an empty reference and
// labs whose type has no entry go to the general channel.
func (r *Router) Route(lab string) []string {
	lab = strings.TrimSpace(lab)
	if lab == "" || strings.EqualFold(lab, domain.AllLabs) || r.labs == nil {
		return []string{ChannelGeneral}
	}
	labType, ok := r.labs.LabType(lab)
	if !ok {
		return []string{ChannelGeneral}
	}
	channels := r.table[labType]
	if len(channels) == 0 {
		return []string{ChannelGeneral}
	}
	return append([]string(nil), channels...)
}

// Channels returns the audience of a lifecycle change. Pending proposals and
// rejections always go to the pending-review channel, never to the lab.
func (r *Router) Channels(lc Lifecycle, lab string) []string {
	switch lc {
	case ProposalPending, ProposalRejected:
		return []string{ChannelPendingReview}
	}
	return r.Route(lab)
}

// Channel returns the settings of a channel.
func (r *Router) Channel(id string) ChannelConfig {
	c, ok := r.channels[id]
	if !ok && strings.HasPrefix(id, userChannelPrefix) {
		c, ok = r.channels[userChannelPrefix+"*"]
	}
	if !ok || c.Format == "" {
		c.Format = r.defaultFormat
	}
	return c
}
