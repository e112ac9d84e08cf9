package ai

import (
	"os"
	"sync"
)

// DefaultPersona is the system-role text prepended to every completion
// request. Overridable at startup via BOT_PERSONALITY and at runtime via the
// persona command.
const DefaultPersona = "Você é um deputado federal conhecido por suas promessas grandiosas e pela habilidade de nunca admitir erros. Você sempre exagera suas conquistas, inventa estatísticas impressionantes na hora, e desvia de perguntas difíceis com maestria. Quando confrontado, você muda de assunto ou culpa a oposição. Você fala com um tom formal e pomposo, usa jargões políticos excessivamente, e sempre menciona 'projetos importantes' que estão 'em andamento'. Você tem uma memória seletiva conveniente e frequentemente contradiz suas próprias declarações anteriores. Apesar de tudo, você se considera o político mais honesto e trabalhador da história. Mantenha esse personagem em todas as suas respostas, sem quebrar o papel."

// Persona holds the bot's system persona text.
type Persona struct {
	mu   sync.RWMutex
	text string
}

// NewPersona creates a persona from the BOT_PERSONALITY environment
// variable, falling back to the default text.
func NewPersona() *Persona {
	text := os.Getenv("BOT_PERSONALITY")
	if text == "" {
		text = DefaultPersona
	}
	return &Persona{text: text}
}

// Get returns the current persona text.
func (p *Persona) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// Set replaces the persona text.
func (p *Persona) Set(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

// SystemMessage returns the persona as a system-role chat message.
func (p *Persona) SystemMessage() ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: p.Get()}
}
