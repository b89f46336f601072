// Package main implements rainyun-checkin, a CLI tool that logs in to the
// Rainyun account portal with a real browser and performs the daily check-in.
//
// # Features
//
//   - Selector-fallback element location for unstable page markup
//   - Image captcha solving via an OpenAI-compatible vision model
//   - UI check-in with an HTTP API fallback when no control can be found
//   - Sequential multi-account runs with cool-down and a summary report
//
// # Usage
//
//	rainyun-checkin run [--config PATH] [--visible] [--cooldown DURATION]
//
// # Configuration
//
// Accounts come from RAINYUN_ACCOUNTS (a JSON array of {username,password}
// objects or `username----password` lines) or from RAINYUN_USERNAME and
// RAINYUN_PASSWORD, optionally loaded through a .env file. The remaining
// settings (base URL, user agent, OCR endpoint) load from config.json.
package main
