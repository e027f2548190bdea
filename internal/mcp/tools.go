package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("backup_list",
	mcp.WithDescription("List the newest backup files in the backup repository. "+
		"Listings are cached; pass refresh to bypass the cache."),
	mcp.WithBoolean("refresh",
		mcp.Description("Ignore the cached listing and query the repository")),
)

var summaryToolDef = mcp.NewTool("backup_summary",
	mcp.WithDescription("Summarize yesterday from a backup: tracked time, a timeline "+
		"of intervals and the tasks that were due."),
	mcp.WithString("backup",
		mcp.Description("Backup file name (default: newest backup)")),
)

var reportToolDef = mcp.NewTool("backup_report",
	mcp.WithDescription("Total tracked time per activity over a calendar day, week or month. "+
		"Weeks start on Monday. Intervals crossing the range boundary count in full "+
		"when they start inside the range."),
	mcp.WithString("backup",
		mcp.Description("Backup file name (default: newest backup)")),
	mcp.WithString("date",
		mcp.Description("Anchor date as YYYY-MM-DD (default: today)")),
	mcp.WithString("range",
		mcp.Description("Calendar range around the date (default: day)"),
		mcp.Enum("day", "week", "month")),
	mcp.WithBoolean("exclude_common",
		mcp.Description("Leave out the configured common activities, such as sleep")),
)

var exportToolDef = mcp.NewTool("backup_export",
	mcp.WithDescription("Compute a report and write it as a JSON file under the exports directory."),
	mcp.WithString("backup",
		mcp.Description("Backup file name (default: newest backup)")),
	mcp.WithString("date",
		mcp.Description("Anchor date as YYYY-MM-DD (default: today)")),
	mcp.WithString("range",
		mcp.Description("Calendar range around the date (default: day)"),
		mcp.Enum("day", "week", "month")),
	mcp.WithBoolean("exclude_common",
		mcp.Description("Leave out the configured common activities")),
	mcp.WithString("path",
		mcp.Description("Output path ending in .json (default: <exports>/<range>-<date>.json)")),
)

var cacheStatusToolDef = mcp.NewTool("cache_status",
	mcp.WithDescription("Report cached listing and snapshot counts and whether the listing is fresh."),
)
