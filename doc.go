// Package yttitle rotates the title of a YouTube live broadcast.
//
// Overview
//
// Titles wait in a plain-text queue (titles.txt, one per line). Each
// reconciliation cycle asks YouTube for the channel's active broadcast; when
// the channel is live and the broadcast title differs from the next queued
// title, the title is pushed, removed from the queue and archived to
// applied-titles.txt and history.log. An empty queue falls back to a
// generated title such as "Saturday, March 23, 2024 - Vespers and Midnight
// Praises", which is never added to the queue.
//
// Quick Start
//
//	cfg, err := config.Load(config.LoadOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	host := yttitle.NewYouTubeHost(cfg, yttitle.HostOptions{Interactive: true})
//	u, err := yttitle.New(ctx, cfg, host)
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := u.TriggerUpdate(ctx)
//	fmt.Println(u.Status().Message)
//
// Configuration
//
// Settings are read from, in order of priority:
//
//  1. Command-line flags (--config-dir, --log-level)
//  2. Environment variables (YTTITLE_TIMEZONE, YTTITLE_CHECK_INTERVAL, ...)
//  3. A .env file in the working directory
//  4. yttitle.toml in the working directory or the config directory
//  5. Default values
//
// The config directory defaults to %APPDATA%\yt_title_updater on Windows,
// ~/Documents/yt_title_updater on macOS and ~/.config/yt_title_updater
// elsewhere. It also holds client_secrets.json and the cached OAuth token.
//
// Error Handling
//
// Checking for sentinel errors:
//
//	if errors.Is(err, yttitle.ErrConsentRequired) {
//		fmt.Println("run `yttitle auth` first")
//	}
//
// Extracting wrapped error details:
//
//	var apiErr *yttitle.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("%s failed: %v\n", apiErr.Op, apiErr.Err)
//	}
//
// Concurrency
//
// One process is expected to own a config directory. Cycles within a
// process are serialized; across processes only the watch command takes an
// advisory lock on the directory.
package yttitle
