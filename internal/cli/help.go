package cli

import "fmt"

func PrintExtendedHelp() {
	fmt.Println("PillPal - medication reminders and adherence tracking")
	fmt.Println()
	fmt.Println("Usage: pillpal [--config <file>] [--data <dir>] [-v] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                     Run the API server, scheduler and notifiers")
	fmt.Println("  meds [list]               List medications")
	fmt.Println("  meds add --name <n> --dosage <d> --every <8|12|24> --at <HH:mm> [--notes <text>]")
	fmt.Println("  meds delete <id>          Delete a medication and its doses")
	fmt.Println("  doses [today]             Show today's doses")
	fmt.Println("  doses take <n|id>         Mark a dose taken")
	fmt.Println("  doses skip <n|id>         Mark a dose skipped")
	fmt.Println("  adherence                 Show today's adherence")
	fmt.Println("  visit [health details]    Draft questions for a doctor's appointment")
	fmt.Println("  dashboard                 Interactive view of today's doses")
	fmt.Println("  notify [status|test]      Check notification channels")
	fmt.Println("  config [path|init|get|show]")
	fmt.Println("  version                   Print the version")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  OPENAI_API_KEY, OPENROUTER_API_KEY, KIMI_API_KEY   LLM credentials")
	fmt.Println("  TELEGRAM_BOT_TOKEN, DISCORD_BOT_TOKEN              Chat notifiers")
	fmt.Println("  PILLPAL_<SECTION>_<KEY>                            Any config value")
}

func PrintConfigHelp() {
	fmt.Println("Usage: pillpal config <command>")
	fmt.Println()
	fmt.Println("  path         Print the config file location")
	fmt.Println("  init         Write a starter config file")
	fmt.Println("  get <key>    Print one value")
	fmt.Println("  show         Print the effective configuration")
}
