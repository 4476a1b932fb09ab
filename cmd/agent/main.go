package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zaqqye/examguard/internal/agent"
	"github.com/zaqqye/examguard/internal/lockdown"
	"github.com/zaqqye/examguard/internal/tui"
)

func main() {
	var (
		configPath = flag.String("config", "examguard.toml", "path to the agent config file")
		code       = flag.String("code", "", "exam access code")
		name       = flag.String("name", "", "student display name")
		studentID  = flag.String("student-id", "", "student identifier")
	)
	flag.Parse()

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	accessCode := strings.TrimSpace(*code)
	for accessCode == "" {
		fmt.Print("Access code: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("read access code: %v", err)
		}
		accessCode = strings.TrimSpace(line)
	}
	studentName := strings.TrimSpace(*name)
	for studentName == "" {
		fmt.Print("Your name: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("read name: %v", err)
		}
		studentName = strings.TrimSpace(line)
	}

	adapter := lockdown.NewPlatformAdapter(cfg.Lockdown.BrowserPath)
	a := agent.New(cfg, adapter)

	if err := a.Join(accessCode, studentName, *studentID); err != nil {
		log.Fatalf("join exam: %v", err)
	}

	p := tea.NewProgram(tui.NewModel(a, studentName), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		// The terminal died under us; make sure the machine is unlocked
		// before giving up.
		a.Controller().End("terminated")
		log.Fatalf("control surface: %v", err)
	}
	<-a.Done()
}
