// Package notifier delivers the daily schedule to subscribed chats.
//
// A cron entry fires once a minute in the configured timezone. Every user
// whose delivery time equals the current HH:MM receives today's schedule.
// Sends are paced by a token bucket so a large batch stays under the
// Telegram flood limits, and a chat that blocked the bot is unsubscribed.
//
// An optional second cron entry warms the timetable cache ahead of the
// morning batch.
package notifier
