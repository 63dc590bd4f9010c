package estimate

import "github.com/ashureev/estimabot/internal/llm"

const systemPrompt = "Sos un asistente que genera presupuestos y devuelve un JSON estructurado. El formato del JSON debe ser:\n" +
	"{\n  \"pdf_title\": \"[título del PDF]\",\n  \"content\": \"[contenido en Markdown]\"\n}\n\n" +
	"El título del PDF (`pdf_title`) debe ser la dirección mencionada en el mensaje del usuario (si existe), " +
	"de lo contrario debe ser el nombre del/los propietario/s. En última instancia, debe ser \"Presupuesto\". " +
	"El contenido (`content`) debe estar en Markdown con este formato de EJEMPLO:\n\n" +
	"**Fecha:** [fecha]\n\n**Propietaria:** [nombre]\n\n**Dirección:** [dirección]\n\n" +
	"**Contacto:** [contacto]\n\n---\n\n### **Presupuesto por Mano de Obra**\n\n" +
	"### **Trabajos a Realizar:**\n\n1. [trabajo 1]\n2. [trabajo 2]\n...\n\n---\n\n" +
	"### **Costo Total del Proyecto:** $[monto]\n\n---\n\n" +
	"### **Materiales Aproximados:**\n\n- [material 1]\n- [material 2]\n...\n\n" +
	"Todo campo faltante, ya sea propietario, contacto, dirección, trabajos a realizar, materiales aproximados, etc. debe ser OMITIDO. " +
	"Si falta el contacto, no envíes \"Contacto: [Contacto]\". Simplemente no envíes el campo. " +
	"Si hay información extra, debe ser agregada de manera ordenada y estructurada, de la manera más conveniente para el usuario. " +
	"No debés seguir TODO al pie de la letra ya que habrá distintas formas de presentar la información. " +
	"Tenés libertad para agregar, quitar, modificar y reestructurar el contenido según sea necesario; lo importante es mantener el formato y la estructura. " +
	"Tomá el mensaje del usuario y estructuralo en este formato JSON. Si es una modificación, ajustá el presupuesto anterior según las instrucciones."

var estimateSchema = llm.Schema{
	Name:        "estimate",
	Description: "Presupuesto con título y contenido en Markdown",
	Properties: []llm.Property{
		{Name: "pdf_title", Description: "Dirección, nombre del propietario o \"Presupuesto\""},
		{Name: "content", Description: "Contenido del presupuesto en Markdown"},
	},
}
