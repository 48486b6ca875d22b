package command

// HelpText lists every supported command.
const HelpText = "🧾 *Comandos*\n" +
	"• km inicio 32000\n" +
	"• km final 32210\n" +
	"• corrida 25  |  corrida 12, 18, 34\n" +
	"• abasteci etanol 120 28   (tipo valor litros)\n" +
	"• abasteci gasolina 200 33.5\n" +
	"• resumo            (de hoje)\n" +
	"• resumo AAAA-MM-DD\n"

// NotUnderstood prefixes the help text for unrecognised messages.
const NotUnderstood = "Não entendi 🤔\n\n" + HelpText

// InvalidDateReply answers a summary request with a malformed date.
const InvalidDateReply = "Data inválida. Use AAAA-MM-DD"
