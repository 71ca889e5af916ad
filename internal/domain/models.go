package domain

import "time"

const (
	// StationChannelPrefix marks a station's now-playing channel
	StationChannelPrefix = "station:"
	// ClockChannel is the server clock channel
	ClockChannel = "global:time"
)

// Subscription identifies one channel of interest
type Subscription struct {
	// Key is the channel name, e.g. "station:azuratest_radio"
	Key string
	// Timezone is the fallback zone used when the snapshot carries none
	Timezone string
}

// Shortcode returns the station part of a station channel key
func (s Subscription) Shortcode() string {
	if len(s.Key) <= len(StationChannelPrefix) || s.Key[:len(StationChannelPrefix)] != StationChannelPrefix {
		return ""
	}
	return s.Key[len(StationChannelPrefix):]
}

// StationKey builds the channel key for a station shortcode
func StationKey(shortcode string) string {
	return StationChannelPrefix + shortcode
}

// NowPlaying is the full now-playing record of a station. It is replaced
// wholesale on every station event.
type NowPlaying struct {
	Station    StationInfo `json:"station"`
	Listeners  Listeners   `json:"listeners"`
	Live       Live        `json:"live"`
	NowPlaying CurrentSong `json:"now_playing"`
	IsOnline   bool        `json:"is_online"`
}

// StationInfo describes the station itself
type StationInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Shortcode       string `json:"shortcode"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	ListenURL       string `json:"listen_url"`
	PublicPlayerURL string `json:"public_player_url"`
	Timezone        string `json:"timezone"`
}

// Listeners holds the listener counts
type Listeners struct {
	Total   int `json:"total"`
	Unique  int `json:"unique"`
	Current int `json:"current"`
}

// Live describes a live broadcast
type Live struct {
	IsLive       bool   `json:"is_live"`
	StreamerName string `json:"streamer_name"`
}

// CurrentSong is the song currently on air
type CurrentSong struct {
	// ShID changes only when the playing track changes
	ShID      int64   `json:"sh_id"`
	PlayedAt  int64   `json:"played_at"`
	Duration  float64 `json:"duration"`
	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining"`
	Playlist  string  `json:"playlist"`
	IsRequest bool    `json:"is_request"`
	Song      Song    `json:"song"`
}

// Song carries the track metadata
type Song struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album"`
	Art    string `json:"art"`
}

// Update is one decoded row of the event stream: a StationUpdate,
// a ClockUpdate or Unrecognized
type Update interface {
	isUpdate()
}

// StationUpdate carries a fresh snapshot for a station channel
type StationUpdate struct {
	Key        string
	NowPlaying NowPlaying
}

// ClockUpdate carries the server's UNIX timestamp
type ClockUpdate struct {
	Time int64
}

// Unrecognized is a row whose channel or payload could not be routed
type Unrecognized struct {
	Channel string
}

func (StationUpdate) isUpdate() {}
func (ClockUpdate) isUpdate()   {}
func (Unrecognized) isUpdate()  {}

// Announcement is emitted when a station starts a new song
type Announcement struct {
	Key        string
	Class      string
	NowPlaying NowPlaying
	At         time.Time
}

// HistoryEntry is one played song as persisted by the store
type HistoryEntry struct {
	Key      string    `json:"key"`
	ShID     int64     `json:"sh_id"`
	Text     string    `json:"text"`
	Artist   string    `json:"artist"`
	Title    string    `json:"title"`
	Album    string    `json:"album"`
	Playlist string    `json:"playlist"`
	IsLive   bool      `json:"is_live"`
	PlayedAt time.Time `json:"played_at"`
}

// StationStatus is the read-only view of a station published by the engine
type StationStatus struct {
	Key            string      `json:"key"`
	Class          string      `json:"class"`
	NowPlaying     *NowPlaying `json:"now_playing,omitempty"`
	Elapsed        float64     `json:"elapsed"`
	Duration       float64     `json:"duration"`
	ProgressActive bool        `json:"progress_active"`
}

// Status is the published engine state
type Status struct {
	ServerTime int64           `json:"server_time"`
	Stations   []StationStatus `json:"stations"`
}
